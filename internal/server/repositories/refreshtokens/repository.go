// Package refreshtokens stores opaque, single-use refresh tokens. A user owns
// at most one live token at any instant; issuing replaces it and rotation
// consumes it.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// Repository is the refresh token store.
type Repository interface {
	// Issue deletes every token owned by userID and stores a fresh one that
	// expires at now plus the store's refresh lifetime. Both steps are a
	// single atomic unit with respect to any other Issue or Rotate for the
	// same user.
	Issue(ctx context.Context, userID string, now time.Time) (string, error)

	// Rotate consumes token and replaces it with a new one for the same owner.
	// An unknown token yields common.ErrRefreshTokenNotFound. An expired token
	// is deleted and yields common.ErrRefreshTokenExpired. Of two concurrent
	// rotations of one token exactly one succeeds.
	Rotate(ctx context.Context, token string, now time.Time) (userID string, newToken string, err error)

	// Find returns common.ErrRefreshTokenNotFound for unknown tokens.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// RevokeAll deletes every token owned by userID. Revoking a user with no
	// tokens is not an error.
	RevokeAll(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes tokens whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	CountForUser(ctx context.Context, userID string) (int64, error)
}

func newToken() (string, error) {
	return common.MakeRandHexString(common.RefreshTokenSize)
}
