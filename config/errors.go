package config

import "errors"

// Sentinel errors for configuration.
var (
	// ErrInvalid indicates a configuration that failed validation.
	ErrInvalid = errors.New("config: invalid configuration")

	// ErrInvalidSize indicates a byte size that could not be parsed.
	ErrInvalidSize = errors.New("config: invalid byte size")

	// ErrUnknownKey indicates Set was called with a key no setting uses.
	ErrUnknownKey = errors.New("config: unknown key")
)
