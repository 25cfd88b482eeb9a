// Package common defines shared constants and sentinel errors used across
// tokenkeeper components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// ErrUnavailable marks a persistence or cache fault. It is never an
	// authentication outcome; callers may retry only idempotent operations.
	ErrUnavailable = errors.New("store unavailable")

	// Credential and registration outcomes.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("email is already in use")
	ErrTooManyAttempts    = errors.New("too many login attempts")

	// ErrInvalidInput wraps request field validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// Refresh token lifecycle errors.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")

	// Access token verification errors. They collapse to a single
	// "invalid" outcome at the validator boundary.
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")

	// ErrInvalidToken is the only token error a caller of the validator sees.
	ErrInvalidToken = errors.New("invalid token")
)
