package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	pb "github.com/dmitrijs2005/tokenkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Session is what the client knows about the logged-in user.
type Session struct {
	UserName  string
	Email     string
	ExpiresIn int64
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.AuthServiceClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	session      Session
}

var protectedMethods = map[string]struct{}{
	pb.AuthService_Logout_FullMethodName: {},
	pb.AuthService_Me_FullMethodName:     {},
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	return metadata.NewOutgoingContext(ctx, md)
}

// accessTokenInterceptor attaches the access token to protected calls and,
// when the server answers Unauthenticated, rotates the pair and retries once.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if _, ok := protectedMethods[method]; !ok {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	access, _ := s.tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if status.Code(err) != codes.Unauthenticated {
		return err
	}

	if _, refresh := s.tokens(); refresh == "" {
		return err
	}
	if rerr := s.Refresh(ctx); rerr != nil {
		return err
	}

	access, _ = s.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

func NewAuthClient(endpointURL string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthServiceClient(conn)
	return nil
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) store(resp *pb.TokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.session = Session{UserName: resp.Username, Email: resp.Email, ExpiresIn: resp.ExpiresIn}
}

func (s *GRPCClient) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken = "", ""
	s.session = Session{}
}

// LoggedIn reports whether a token pair is held.
func (s *GRPCClient) LoggedIn() bool {
	_, refresh := s.tokens()
	return refresh != ""
}

func (s *GRPCClient) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *GRPCClient) Register(ctx context.Context, userName, email, password string) error {
	resp, err := s.client.Register(ctx, &pb.RegisterRequest{Username: userName, Email: email, Password: password})
	if err != nil {
		return s.mapError(err)
	}
	s.store(resp)
	return nil
}

func (s *GRPCClient) Login(ctx context.Context, userName, password string) error {
	resp, err := s.client.Login(ctx, &pb.LoginRequest{Username: userName, Password: password})
	if err != nil {
		return s.mapError(err)
	}
	s.store(resp)
	return nil
}

// Refresh rotates the held pair. A rejected refresh token drops the session.
func (s *GRPCClient) Refresh(ctx context.Context) error {
	_, refresh := s.tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	resp, err := s.client.Refresh(ctx, &pb.RefreshRequest{RefreshToken: refresh})
	if err != nil {
		err = s.mapError(err)
		if errors.Is(err, ErrUnauthorized) {
			s.clear()
		}
		return err
	}
	s.store(resp)
	return nil
}

// Logout revokes the server-side refresh token and forgets the local pair.
func (s *GRPCClient) Logout(ctx context.Context) error {
	if !s.LoggedIn() {
		return ErrNotLoggedIn
	}
	_, err := s.client.Logout(ctx, &pb.LogoutRequest{})
	s.clear()
	return s.mapError(err)
}

func (s *GRPCClient) Me(ctx context.Context) (*pb.MeResponse, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	resp, err := s.client.Me(ctx, &pb.MeRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrConflict, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.ResourceExhausted:
		return ErrThrottled
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
