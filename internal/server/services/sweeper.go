package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
)

// Sweeper periodically deletes expired refresh tokens. Rotation already
// rejects them; sweeping only bounds table growth.
type Sweeper struct {
	tokens   refreshtokens.Repository
	interval time.Duration
	metrics  *metrics.Metrics
	logger   logging.Logger
	now      func() time.Time
}

func NewSweeper(tokens refreshtokens.Repository, interval time.Duration, m *metrics.Metrics, logger logging.Logger) *Sweeper {
	return &Sweeper{
		tokens:   tokens,
		interval: interval,
		metrics:  m,
		logger:   logger.With("module", "sweeper"),
		now:      time.Now,
	}
}

// Run sweeps once per interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes tokens expired as of now and returns how many went away.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error(ctx, "refresh token sweep failed", "error", err)
		return 0
	}
	s.metrics.TokensSwept(n)
	if n > 0 {
		s.logger.Info(ctx, "expired refresh tokens removed", "count", n)
	}
	return n
}
