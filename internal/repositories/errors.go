package repositories

import "errors"

var (
	// ErrNotFound indicates no user matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write would duplicate a unique login or access token.
	ErrConflict = errors.New("record conflict")
	// ErrStale indicates the user was saved by someone else since it was loaded.
	ErrStale = errors.New("record modified concurrently")
)
