package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// PasswordHasher is the password capability the services depend on.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(stored, candidate string) bool
	// Burn spends the time of one Verify without a stored hash.
	Burn(candidate string)
}

// Authenticator checks a username and password against the identity store.
type Authenticator struct {
	users  users.Repository
	hasher PasswordHasher
}

func NewAuthenticator(u users.Repository, h PasswordHasher) *Authenticator {
	return &Authenticator{users: u, hasher: h}
}

// Authenticate returns the matching user. An unknown username and a wrong
// password both yield common.ErrInvalidCredentials and cost one hash
// comparison each.
func (a *Authenticator) Authenticate(ctx context.Context, userName, password string) (*models.User, error) {
	user, err := a.users.GetByUsername(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			a.hasher.Burn(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if !a.hasher.Verify(user.PasswordHash, password) {
		return nil, common.ErrInvalidCredentials
	}
	return user, nil
}
