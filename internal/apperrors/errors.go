package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	// ErrConflict is raised by the store when a unique constraint wins over an
	// insert. Callers that can recover (room resolution) never let it escape.
	ErrConflict    = errors.New("conflict")
	ErrRateLimited = errors.New("rate limited")
)
