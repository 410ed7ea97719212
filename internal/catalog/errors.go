package catalog

import "errors"

var (
	// ErrDuplicate is returned by a Source when an insert violates a UNIQUE constraint.
	ErrDuplicate = errors.New("catalog entry already exists")
	// ErrNotFound is returned by updates that address a missing entry.
	ErrNotFound = errors.New("catalog entry not found")
)
