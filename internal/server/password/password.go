// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes passwords at a fixed bcrypt cost.
type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher returns a Hasher using cost. Out-of-range values fall back to
// bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// Never matches any candidate; used to spend the same time on unknown users.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("tokenkeeper-dummy-password"), cost)
	return &Hasher{cost: cost, dummy: dummy}
}

func (h *Hasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %w", common.ErrInvalidInput, err)
		}
		return "", fmt.Errorf("hash error: %w", err)
	}
	return string(b), nil
}

// Verify reports whether candidate matches stored. Any malformed stored hash
// is reported as a mismatch.
func (h *Hasher) Verify(stored, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(candidate)) == nil
}

// Burn runs one comparison against a fixed hash and discards the result.
func (h *Hasher) Burn(candidate string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(candidate))
}
