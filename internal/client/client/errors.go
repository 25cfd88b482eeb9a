package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("already exists")
	ErrInvalidInput = errors.New("invalid input")
	ErrThrottled    = errors.New("too many attempts")
	ErrNotLoggedIn  = errors.New("not logged in")
)
