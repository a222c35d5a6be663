package services

import "errors"

// Sentinel errors returned by services. Handlers map them to HTTP statuses.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrUpstream        = errors.New("upstream provider failure")
)
