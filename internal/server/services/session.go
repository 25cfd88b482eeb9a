// Package services contains the server-side session logic: credential
// checks, access and refresh token issuance, rotation and revocation.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/throttle"
)

// Operation names used for metrics.
const (
	opLogin    = "login"
	opRegister = "register"
	opRefresh  = "refresh"
	opLogout   = "logout"
)

// TokenPair is what a successful login, registration or refresh returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	UserName     string
	Email        string
}

// SessionService issues sessions. It holds no per-session state; the only
// shared mutable state is the refresh token store.
type SessionService struct {
	users         users.Repository
	tokens        refreshtokens.Repository
	codec         *auth.Codec
	hasher        PasswordHasher
	authenticator *Authenticator
	limiter       throttle.LoginLimiter
	metrics       *metrics.Metrics
	logger        logging.Logger
	now           func() time.Time
}

type Option func(*SessionService)

func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

func WithLimiter(l throttle.LoginLimiter) Option {
	return func(s *SessionService) { s.limiter = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SessionService) { s.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(s *SessionService) { s.logger = l.With("module", "sessions") }
}

func NewSessionService(m repomanager.RepositoryManager, codec *auth.Codec, hasher PasswordHasher, opts ...Option) *SessionService {
	s := &SessionService{
		users:         m.Users(),
		tokens:        m.RefreshTokens(),
		codec:         codec,
		hasher:        hasher,
		authenticator: NewAuthenticator(m.Users(), hasher),
		limiter:       throttle.Nop{},
		logger:        logging.NewJSONLogger(io.Discard, "error"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login authenticates the user and issues a new session, replacing any
// refresh token the user held before.
func (s *SessionService) Login(ctx context.Context, userName, password string) (*TokenPair, error) {
	if err := s.limiter.Check(ctx, userName); err != nil {
		s.record(opLogin, err)
		return nil, err
	}

	user, err := s.authenticator.Authenticate(ctx, userName, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			if ferr := s.limiter.Fail(ctx, userName); ferr != nil {
				s.logger.Warn(ctx, "login throttle update failed", "error", ferr)
			}
		}
		s.record(opLogin, err)
		return nil, err
	}

	if err := s.limiter.Reset(ctx, userName); err != nil {
		s.logger.Warn(ctx, "login throttle reset failed", "error", err)
	}

	now := s.now()
	pair, err := s.issue(ctx, user, now)
	if err != nil {
		s.record(opLogin, err)
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn(ctx, "last login update failed", "user_id", user.ID, "error", err)
	}

	s.record(opLogin, nil)
	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return pair, nil
}

// Register creates an identity with the default role and issues its first
// session.
func (s *SessionService) Register(ctx context.Context, userName, email, password string) (*TokenPair, error) {
	pair, err := s.register(ctx, userName, email, password)
	s.record(opRegister, err)
	return pair, err
}

func (s *SessionService) register(ctx context.Context, userName, email, password string) (*TokenPair, error) {
	taken, err := s.users.ExistsByUsername(ctx, userName)
	if err != nil {
		return nil, fmt.Errorf("error checking username: %w", err)
	}
	if taken {
		return nil, common.ErrUsernameTaken
	}

	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error checking email: %w", err)
	}
	if taken {
		return nil, common.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{
		UserName:     userName,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{common.DefaultRole},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return s.issue(ctx, user, s.now())
}

// Refresh consumes refreshToken and returns a new pair for its owner.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pair, err := s.refresh(ctx, refreshToken)
	s.record(opRefresh, err)
	return pair, err
}

func (s *SessionService) refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	now := s.now()

	userID, next, err := s.tokens.Rotate(ctx, refreshToken, now)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	access, err := s.codec.Issue(principalOf(user), now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	return s.pair(user, access, next), nil
}

// Logout revokes every refresh token of userID. It succeeds for users that
// hold none. Access tokens stay valid until they expire.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	n, err := s.tokens.RevokeAll(ctx, userID)
	s.record(opLogout, err)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "user logged out", "user_id", userID, "revoked", n)
	return nil
}

// Me returns the stored identity behind p.
func (s *SessionService) Me(ctx context.Context, p auth.Principal) (*models.User, error) {
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SessionService) issue(ctx context.Context, user *models.User, now time.Time) (*TokenPair, error) {
	access, err := s.codec.Issue(principalOf(user), now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	refresh, err := s.tokens.Issue(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("error issuing refresh token: %w", err)
	}

	return s.pair(user, access, refresh), nil
}

func (s *SessionService) pair(user *models.User, access, refresh string) *TokenPair {
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    common.TokenTypeBearer,
		ExpiresIn:    int64(s.codec.AccessTTL() / time.Second),
		UserName:     user.UserName,
		Email:        user.Email,
	}
}

func (s *SessionService) record(op string, err error) {
	switch {
	case err == nil:
		s.metrics.AuthOutcome(op, metrics.OutcomeSuccess)
	case errors.Is(err, common.ErrUnavailable), errors.Is(err, common.ErrorInternal):
		s.metrics.AuthOutcome(op, metrics.OutcomeError)
	default:
		s.metrics.AuthOutcome(op, metrics.OutcomeFailure)
	}
}

func principalOf(u *models.User) auth.Principal {
	return auth.Principal{UserID: u.ID, UserName: u.UserName, Roles: u.Roles}
}
