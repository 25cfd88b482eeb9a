package refreshtokens

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// MemoryRepository keeps tokens in process memory. One mutex serializes every
// operation, which gives the same per-user and single-use guarantees as the
// Postgres store.
type MemoryRepository struct {
	mu       sync.Mutex
	byToken  map[string]*models.RefreshToken
	seq      int64
	validity time.Duration
	newToken func() (string, error)
}

func NewMemoryRepository(validity time.Duration) *MemoryRepository {
	return &MemoryRepository{
		byToken:  make(map[string]*models.RefreshToken),
		validity: validity,
		newToken: newToken,
	}
}

func (r *MemoryRepository) Issue(_ context.Context, userID string, now time.Time) (string, error) {
	token, err := r.newToken()
	if err != nil {
		return "", fmt.Errorf("error generating refresh token: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.revokeLocked(userID)

	r.seq++
	r.byToken[token] = &models.RefreshToken{
		ID:        r.seq,
		UserID:    userID,
		Token:     token,
		Expires:   now.Add(r.validity),
		CreatedAt: now,
	}
	return token, nil
}

func (r *MemoryRepository) Rotate(_ context.Context, token string, now time.Time) (string, string, error) {
	next, err := r.newToken()
	if err != nil {
		return "", "", fmt.Errorf("error generating refresh token: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byToken[token]
	if !ok {
		return "", "", common.ErrRefreshTokenNotFound
	}
	delete(r.byToken, token)

	if current.Expired(now) {
		return "", "", common.ErrRefreshTokenExpired
	}

	current.Token = next
	current.Expires = now.Add(r.validity)
	r.byToken[next] = current

	return current.UserID, next, nil
}

func (r *MemoryRepository) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byToken[token]
	if !ok {
		return nil, common.ErrRefreshTokenNotFound
	}
	c := *t
	return &c, nil
}

func (r *MemoryRepository) RevokeAll(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.revokeLocked(userID), nil
}

func (r *MemoryRepository) revokeLocked(userID string) int64 {
	var n int64
	for k, t := range r.byToken {
		if t.UserID == userID {
			delete(r.byToken, k)
			n++
		}
	}
	return n
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, t := range r.byToken {
		if t.Expired(now) {
			delete(r.byToken, k)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) CountForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.byToken {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}
