package escaperoom

import "errors"

var (
	// ErrNotFound is returned when a room, puzzle object, session or user
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned for operations against a terminal session.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when authoring data collides with existing
	// data, e.g. a taken username.
	ErrConflict = errors.New("conflict")

	// ErrUnauthorized is returned for bad credentials or tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConcurrencyConflict is returned by a Tx when a second award for the
	// same (session, object) pair hits the store's uniqueness guard. The
	// engine recovers from it; it never reaches a caller.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
