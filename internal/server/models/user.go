package models

import (
	"slices"
	"time"
)

// User is the identity record owned by the identity store. The token core
// reads it and creates it on registration; it never deletes it.
type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}
