package secret

import "errors"

var (
	// ErrMissingEnv is returned when ${VAR} names an unset variable.
	ErrMissingEnv = errors.New("secret: missing required environment variables")

	// ErrUnknownProvider is returned for a reference to an unregistered provider.
	ErrUnknownProvider = errors.New("secret: provider is not registered")

	// ErrEmptyValue is returned by a strict resolver when a secret is empty.
	ErrEmptyValue = errors.New("secret: empty value")

	// ErrNotFound is returned by a provider that has no value for a reference.
	ErrNotFound = errors.New("secret: not found")
)
