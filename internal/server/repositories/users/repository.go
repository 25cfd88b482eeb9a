// Package users declares the identity store contract and its PostgreSQL and
// in-memory implementations. The token core reads identities and creates
// them on registration; it never deletes them.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// Repository defines the identity store operations used by the session issuer.
type Repository interface {
	// Create stores a new user together with its roles and fills in ID and
	// CreatedAt. Unique conflicts return common.ErrUsernameTaken or
	// common.ErrEmailTaken; these constraints are the authoritative guard.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByUsername returns common.ErrorNotFound when no user has that name.
	GetByUsername(ctx context.Context, userName string) (*models.User, error)

	// GetByID returns common.ErrorNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*models.User, error)

	ExistsByUsername(ctx context.Context, userName string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// TouchLastLogin records the time of the latest successful login.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
