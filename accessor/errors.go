package accessor

import "errors"

var (
	// ErrNotFound is returned when the repository has no such file.
	ErrNotFound = errors.New("accessor: file not found")

	// ErrStatus is returned for unexpected HTTP responses.
	ErrStatus = errors.New("accessor: unexpected HTTP status")

	// ErrInvalidName is returned for matrix names escaping the repository.
	ErrInvalidName = errors.New("accessor: invalid matrix name")

	// ErrChecksum is returned for an unreadable remote checksum file.
	ErrChecksum = errors.New("accessor: invalid checksum")
)
