package models

import "time"

// RefreshToken is one persisted, single-use refresh token row.
type RefreshToken struct {
	ID        int64
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is no longer usable at now.
// A token whose expiry equals now is already expired.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.Expires.After(now)
}
