package matrix

import "errors"

// Sentinel errors for matrix decoding and application.
var (
	// ErrCorrupt is returned when a blob is truncated or inconsistent.
	ErrCorrupt = errors.New("matrix: corrupt matrix data")

	// ErrUnsupportedElementSize is returned for element sizes other than 4 or 8.
	ErrUnsupportedElementSize = errors.New("matrix: unsupported element size")

	// ErrDimensionMismatch is returned when a vector does not fit the matrix.
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")
)
