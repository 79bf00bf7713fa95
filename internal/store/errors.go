package store

import "errors"

// Error taxonomy for store operations. Handlers map these to HTTP status
// codes at the API boundary; nothing else inspects error details.
var (
	// ErrValidation indicates a missing or malformed required field.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates a duplicate unique key (deviceId already registered).
	ErrConflict = errors.New("conflict")

	// ErrNotFound indicates an unknown id or deviceId.
	ErrNotFound = errors.New("not found")

	// ErrPersistence indicates the backing file could not be written.
	ErrPersistence = errors.New("persistence failed")
)
