package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	pb "github.com/dmitrijs2005/tokenkeeper/internal/proto"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/validation"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC status codes. Unknown errors are not
// echoed to the caller.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrRefreshTokenNotFound),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrUsernameTaken), errors.Is(err, common.ErrEmailTaken):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrTooManyAttempts):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrUnavailable):
		return status.Error(codes.Unavailable, "service unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func tokenResponse(p *services.TokenPair) *pb.TokenResponse {
	return &pb.TokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
		Username:     p.UserName,
		Email:        p.Email,
	}
}

func (s *GRPCServer) Register(ctx context.Context, req *pb.RegisterRequest) (*pb.TokenResponse, error) {
	in := validation.Registration{Username: req.Username, Email: req.Email, Password: req.Password}
	if err := validation.Struct(in); err != nil {
		return nil, toStatus(err)
	}

	pair, err := s.sessions.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return tokenResponse(pair), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.TokenResponse, error) {
	if err := validation.Struct(validation.Credentials{Username: req.Username, Password: req.Password}); err != nil {
		return nil, toStatus(err)
	}

	pair, err := s.sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return tokenResponse(pair), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *pb.RefreshRequest) (*pb.TokenResponse, error) {
	if err := validation.Struct(validation.Refresh{RefreshToken: req.RefreshToken}); err != nil {
		return nil, toStatus(err)
	}

	pair, err := s.sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}
	return tokenResponse(pair), nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *pb.LogoutRequest) (*pb.LogoutResponse, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	if err := s.sessions.Logout(ctx, p.UserID); err != nil {
		return nil, toStatus(err)
	}
	return &pb.LogoutResponse{}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *pb.MeRequest) (*pb.MeResponse, error) {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	user, err := s.sessions.Me(ctx, p)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, status.Error(codes.Unauthenticated, "unknown user")
		}
		return nil, toStatus(err)
	}

	return &pb.MeResponse{
		UserID:      user.ID,
		Username:    user.UserName,
		Email:       user.Email,
		Roles:       user.Roles,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}, nil
}

// Validate lets trusted peers that hold no key material check a token. It
// performs the same local verification as every other consumer.
func (s *GRPCServer) Validate(_ context.Context, req *pb.ValidateRequest) (*pb.ValidateResponse, error) {
	p, ok := s.validator.Validate(req.Token)
	if !ok {
		return &pb.ValidateResponse{Valid: false}, nil
	}
	return &pb.ValidateResponse{Valid: true, UserID: p.UserID, Subject: p.UserName, Roles: p.Roles}, nil
}
