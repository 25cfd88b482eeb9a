package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/tokenkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/cli"
	"github.com/dmitrijs2005/tokenkeeper/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	// in-flight calls are cancelled on Ctrl-C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
