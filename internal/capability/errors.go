package capability

import "errors"

// Domain errors for the capability package.
var (
	// ErrNotFound is returned when a capability ID is not registered.
	ErrNotFound = errors.New("capability: not found")

	// ErrNotCommandable is returned when a command targets a read-only
	// capability (sensor, camera).
	ErrNotCommandable = errors.New("capability: not commandable")

	// ErrInvalidValue is returned when a command value has the wrong type
	// or is outside the allowed range.
	ErrInvalidValue = errors.New("capability: invalid value")
)
