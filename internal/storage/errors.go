// Package storage defines the run-history and run-analytics store
// interfaces plus the sentinel errors every backend maps onto.
package storage

import "errors"

var (
	// ErrNotFound is returned when no run or statistic matches the key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned on an insert whose run key already
	// exists. Run history is append-only; a run is never rewritten.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when a record fails store-level checks
	// before touching the backend.
	ErrInvalidInput = errors.New("invalid input")
)
