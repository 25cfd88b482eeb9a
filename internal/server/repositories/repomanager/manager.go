// Package repomanager builds the identity and refresh token stores for a
// configured backend and owns the lifetime of the underlying connection.
package repomanager

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// MemoryDSN selects the in-process backend instead of PostgreSQL.
const MemoryDSN = "memory"

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository
	Close() error
}

// New returns the manager for dsn. Tokens issued by its refresh store are valid
// for refreshValidity.
func New(ctx context.Context, dsn string, refreshValidity time.Duration) (RepositoryManager, error) {
	if dsn == MemoryDSN {
		return NewInMemoryRepositoryManager(refreshValidity), nil
	}
	m, err := NewPostgresRepositoryManager(ctx, dsn, refreshValidity)
	if err != nil {
		return nil, err
	}
	return m, nil
}
