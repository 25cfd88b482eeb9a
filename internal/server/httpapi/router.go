package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Sessions is the part of services.SessionService the API needs.
type Sessions interface {
	Register(ctx context.Context, userName, email, password string) (*services.TokenPair, error)
	Login(ctx context.Context, userName, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	Me(ctx context.Context, p auth.Principal) (*models.User, error)
}

type Handler struct {
	sessions  Sessions
	validator *auth.Validator
	logger    logging.Logger
}

// NewRouter wires the API routes. m may be nil, in which case /metrics is
// not mounted.
func NewRouter(sessions Sessions, v *auth.Validator, m *metrics.Metrics, l logging.Logger) http.Handler {
	h := &Handler{sessions: sessions, validator: v, logger: l.With("module", "http_api")}

	r := chi.NewRouter()
	r.Use(
		RequestIDMiddleware,
		middleware.Recoverer,
		LoggingMiddleware(h.logger),
		MetricsMiddleware(m),
	)

	r.Get("/api/health", h.health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/validate", h.validate)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(v, http.HandlerFunc(unauthorized)))
			r.Post("/logout", h.logout)
			r.Get("/me", h.me)
		})
	})

	return r
}
