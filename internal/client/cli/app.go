package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/tokenkeeper/internal/client/client"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/config"
	pb "github.com/dmitrijs2005/tokenkeeper/internal/proto"
)

// AuthClient is the part of client.GRPCClient the REPL drives.
type AuthClient interface {
	Register(ctx context.Context, userName, email, password string) error
	Login(ctx context.Context, userName, password string) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*pb.MeResponse, error)
	LoggedIn() bool
	Session() client.Session
	Close() error
}

type App struct {
	config *config.Config
	client AuthClient
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewAuthClient(c.ServerEndpointAddr)
	if err != nil {
		return nil, err
	}
	return &App{config: c, client: apiClient, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.client.Close()

	printlnFn("Welcome to tokenkeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}

func (a *App) isLoggedIn() bool {
	return a.client.LoggedIn()
}

func (a *App) status() string {
	if !a.client.LoggedIn() {
		return "anonymous"
	}
	return a.client.Session().UserName
}

// call bounds each request by the configured timeout.
func (a *App) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if a.config != nil && a.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.RequestTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func (a *App) report(err error) error {
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err)
	}
	return err
}
