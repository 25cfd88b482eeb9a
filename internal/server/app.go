// Package server wires configuration, storage, token issuance and the
// gRPC and HTTP transports into a runnable application.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/config"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/password"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/throttle"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	gs "github.com/dmitrijs2005/tokenkeeper/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	repos     repomanager.RepositoryManager
	redis     *redis.Client
	metrics   *metrics.Metrics
	sessions  *services.SessionService
	validator *auth.Validator
	sweeper   *services.Sweeper
}

// NewApp builds every component from c. The returned App owns the store
// and Redis connections and releases them when Run returns.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger := logging.NewJSONLogger(out, c.LogLevel)

	keys, err := auth.LoadKeyMaterial(c.SigningMethod, c.SecretKey, c.PrivateKeyFile, c.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("signing keys: %w", err)
	}
	codec, err := auth.NewCodec(keys, auth.CodecConfig{AccessTTL: c.AccessTokenValidityDuration, Issuer: c.Issuer})
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	repos, err := repomanager.New(ctx, c.DatabaseDSN, c.RefreshTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	app := &App{
		config:    c,
		logger:    logger,
		repos:     repos,
		metrics:   metrics.New(),
		validator: auth.NewValidator(codec, nil),
	}

	var limiter throttle.LoginLimiter = throttle.Nop{}
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		limiter = throttle.NewRedisLimiter(app.redis, throttle.Config{
			MaxAttempts: c.MaxLoginAttempts,
			Cooldown:    c.LoginCooldown,
		})
	}

	app.sessions = services.NewSessionService(repos, codec, password.NewHasher(bcrypt.DefaultCost),
		services.WithLimiter(limiter),
		services.WithMetrics(app.metrics),
		services.WithLogger(logger),
	)

	if c.SweepInterval > 0 {
		app.sweeper = services.NewSweeper(repos.RefreshTokens(), c.SweepInterval, app.metrics, logger)
	}

	return app, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sessions, app.validator)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	router := httpapi.NewRouter(app.sessions, app.validator, app.metrics, app.logger)
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, router, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.EndpointAddrHTTP != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHTTPServer(ctx, cancelFunc)
		}()
	}

	if app.sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.sweeper.Run(ctx)
		}()
	}

	wg.Wait()
	app.close(context.WithoutCancel(ctx))
}

func (app *App) close(ctx context.Context) {
	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "closing store", "error", err)
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "closing redis", "error", err)
		}
	}
	app.logger.Info(ctx, "App stopped")
}
