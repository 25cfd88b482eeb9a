package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	pb "github.com/dmitrijs2005/tokenkeeper/internal/proto"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDHeader = "x-request-id"

// protectedMethods require a valid bearer access token.
var protectedMethods = map[string]bool{
	pb.AuthService_Logout_FullMethodName: true,
	pb.AuthService_Me_FullMethodName:     true,
}

func firstValue(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// loggingInterceptor tags the call with a request id, echoes it in the
// response header and logs the outcome.
func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := firstValue(ctx, requestIDHeader)
	if id == "" {
		id = logging.NewRequestID()
	}
	ctx = logging.WithRequestID(ctx, id)
	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, id))

	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	if code == codes.Internal || code == codes.Unavailable {
		s.logger.Error(ctx, "grpc request failed", append(args, "error", err)...)
	} else {
		s.logger.Info(ctx, "grpc request", args...)
	}
	return resp, err
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	header := firstValue(ctx, common.AuthorizationHeaderName)
	if header == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	p, ok := s.validator.ValidateHeader(header)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return handler(auth.WithPrincipal(ctx, p), req)
}
