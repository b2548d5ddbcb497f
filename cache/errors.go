package cache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrUnknownPolicy indicates an unsupported policy name.
	ErrUnknownPolicy = errors.New("cache: unknown policy")

	// ErrInvalidMaxMemory indicates a memory budget the policy cannot use.
	ErrInvalidMaxMemory = errors.New("cache: invalid maximum memory")

	// ErrCapacityExceeded indicates strict mode refused a matrix whose
	// estimated size does not fit in the budget.
	ErrCapacityExceeded = errors.New("cache: matrix too large to fit")

	// ErrNilSizeFunc indicates New was called without a size function.
	ErrNilSizeFunc = errors.New("cache: size function is nil")

	// ErrNilCreate indicates Get was called without a create function.
	ErrNilCreate = errors.New("cache: create function is nil")
)
