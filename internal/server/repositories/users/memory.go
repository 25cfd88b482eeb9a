package users

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is an in-process identity store. It enforces the same
// username and email uniqueness as the Postgres schema.
type MemoryRepository struct {
	mu         sync.RWMutex
	byID       map[string]*models.User
	byUsername map[string]string
	byEmail    map[string]string
	now        func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:       make(map[string]*models.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		now:        time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.UserName]; ok {
		return nil, common.ErrUsernameTaken
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return nil, common.ErrEmailTaken
	}

	user.ID = uuid.NewString()
	user.CreatedAt = r.now().UTC()

	stored := clone(user)
	r.byID[stored.ID] = stored
	r.byUsername[stored.UserName] = stored.ID
	r.byEmail[stored.Email] = stored.ID

	return user, nil
}

func (r *MemoryRepository) GetByUsername(_ context.Context, userName string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[userName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(user), nil
}

func (r *MemoryRepository) ExistsByUsername(_ context.Context, userName string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUsername[userName]
	return ok, nil
}

func (r *MemoryRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byEmail[email]
	return ok, nil
}

func (r *MemoryRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.byID[id]; ok {
		t := at
		user.LastLoginAt = &t
	}
	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
