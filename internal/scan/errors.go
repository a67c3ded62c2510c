package scan

import "errors"

// Scan errors
var (
	// ErrInvalidRange indicates range bounds or step that cannot be swept
	ErrInvalidRange = errors.New("invalid scan range")

	// ErrSaveNotImplemented is returned when range mode is asked to save hits.
	// The output format has not been decided.
	ErrSaveNotImplemented = errors.New("saving active frequencies is not implemented")
)
