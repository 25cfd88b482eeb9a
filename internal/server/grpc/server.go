// Package grpc exposes the session service as tokenkeeper.AuthService.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	pb "github.com/dmitrijs2005/tokenkeeper/internal/proto"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"google.golang.org/grpc"
)

// Sessions is the part of services.SessionService the transport needs.
type Sessions interface {
	Register(ctx context.Context, userName, email, password string) (*services.TokenPair, error)
	Login(ctx context.Context, userName, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Me(ctx context.Context, p auth.Principal) (*models.User, error)
}

type GRPCServer struct {
	pb.UnimplementedAuthServiceServer
	address   string
	sessions  Sessions
	validator *auth.Validator
	logger    logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, sessions Sessions, v *auth.Validator) (*GRPCServer, error) {
	if sessions == nil || v == nil {
		return nil, errors.New("grpc server needs sessions and a validator")
	}
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		sessions:  sessions,
		validator: v,
	}, nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	pb.RegisterAuthServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
