package repository

import "errors"

var (
	// ErrNotFound is returned when no row matches the lookup, including rows
	// that exist but belong to someone else.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate key")
)
