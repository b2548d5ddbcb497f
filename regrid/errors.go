package regrid

import "errors"

// Sentinel errors for regrid operations.
var (
	// ErrNotFound indicates that no matrix converts the input grid to the
	// output grid with the requested method.
	ErrNotFound = errors.New("regrid: no precomputed interpolator found")

	// ErrShapeMismatch indicates values that do not fit the input grid.
	ErrShapeMismatch = errors.New("regrid: values do not match the input grid")

	// ErrNilValues indicates a request without values.
	ErrNilValues = errors.New("regrid: values are nil")

	// ErrUnknownBackend indicates a backend name that is not configured.
	ErrUnknownBackend = errors.New("regrid: unknown backend")

	// ErrExists indicates that CopyMatrixFile would overwrite a file.
	ErrExists = errors.New("regrid: target file already exists")
)
