package storage

import "errors"

// Sentinel errors shared by every store implementation. Stores wrap these
// with context; callers match with errors.Is.
var (
	// ErrNotFound reports a model, draw set or optimization that was never
	// stored (or was deleted).
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey reports an insert whose key is already present. Fitted
	// models and their draws are immutable snapshots, so a collision means
	// the same fit was already persisted, never that an update is wanted.
	ErrDuplicateKey = errors.New("duplicate key: stored records are immutable")

	// ErrInvalidInput reports a record that fails validation before any
	// storage round trip, such as an empty primary key.
	ErrInvalidInput = errors.New("invalid input")
)
