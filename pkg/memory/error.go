package memory

import "errors"

var (
	// ErrNotInitialized is returned when an engine operation is invoked
	// before setup completes.
	ErrNotInitialized = errors.New("memory engine not initialized")

	// ErrNotFound is returned when a single-memory lookup finds nothing.
	ErrNotFound = errors.New("memory not found")
)
