// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication (bad credentials, missing or invalid token).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email or slug taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict indicates a concurrent write broke an expected invariant; the caller may retry.
	ErrConflict = errors.New("conflict")

	// ErrValidation marks malformed client input.
	ErrValidation = errors.New("validation")
)
