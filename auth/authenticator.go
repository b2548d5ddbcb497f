package auth

import (
	"context"
	"errors"
	"net/http"
)

// Authenticator validates the credentials of a request.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: ErrMissingCredentials when the request carries none this
//     authenticator understands; ErrInvalidCredentials, ErrTokenExpired or
//     ErrTokenMalformed when they are rejected.
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Authenticate returns the identity behind the request credentials.
	Authenticate(ctx context.Context, header http.Header) (*Identity, error)
}

// CompositeAuthenticator tries multiple authenticators in sequence.
// Authenticators that find no credentials are skipped; the first that finds
// credentials decides.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator creates a composite authenticator.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	return &CompositeAuthenticator{authenticators: auths}
}

// Name returns "composite".
func (c *CompositeAuthenticator) Name() string { return "composite" }

// Authenticate tries each authenticator in sequence.
func (c *CompositeAuthenticator) Authenticate(ctx context.Context, header http.Header) (*Identity, error) {
	for _, a := range c.authenticators {
		id, err := a.Authenticate(ctx, header)
		if errors.Is(err, ErrMissingCredentials) {
			continue
		}
		return id, err
	}
	return nil, ErrMissingCredentials
}

var _ Authenticator = (*CompositeAuthenticator)(nil)
