package index

import "errors"

// Sentinel errors for index operations.
var (
	// ErrVersionMismatch indicates an index document with an unexpected
	// schema version.
	ErrVersionMismatch = errors.New("index: version mismatch")

	// ErrMalformedEntry indicates an index entry that could not be parsed.
	ErrMalformedEntry = errors.New("index: malformed entry")

	// ErrInvalidMethod indicates an interpolation descriptor without a
	// usable method name.
	ErrInvalidMethod = errors.New("index: invalid interpolation method")

	// ErrMissingEntry indicates a subset filter that matched no entry.
	ErrMissingEntry = errors.New("index: no entry found")
)
