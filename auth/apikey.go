package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// HeaderName is the header containing the API key.
	// Default: "X-API-Key"
	HeaderName string
}

// APIKey is a key accepted by APIKeyAuthenticator.
type APIKey struct {
	// ID identifies the key in logs.
	ID string

	// Key is the plain key. Only its hash is kept.
	Key string

	// Principal is the identity associated with this key.
	Principal string

	// Roles are the roles granted to this key.
	Roles []string
}

type storedKey struct {
	hash [sha256.Size]byte
	info APIKey
}

// APIKeyAuthenticator validates static API keys.
type APIKeyAuthenticator struct {
	config APIKeyConfig
	keys   []storedKey
}

// NewAPIKeyAuthenticator creates an authenticator accepting keys.
func NewAPIKeyAuthenticator(config APIKeyConfig, keys ...APIKey) *APIKeyAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	a := &APIKeyAuthenticator{config: config, keys: make([]storedKey, 0, len(keys))}
	for _, k := range keys {
		stored := storedKey{hash: sha256.Sum256([]byte(k.Key)), info: k}
		stored.info.Key = ""
		a.keys = append(a.keys, stored)
	}
	return a
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return "api_key" }

// Authenticate validates the API key header. Every stored key is compared
// in constant time.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, header http.Header) (*Identity, error) {
	key := strings.TrimSpace(header.Get(a.config.HeaderName))
	if key == "" {
		return nil, ErrMissingCredentials
	}
	hash := sha256.Sum256([]byte(key))

	var match *APIKey
	for i := range a.keys {
		if subtle.ConstantTimeCompare(hash[:], a.keys[i].hash[:]) == 1 {
			match = &a.keys[i].info
		}
	}
	if match == nil {
		return nil, ErrInvalidCredentials
	}
	return &Identity{
		Principal: match.Principal,
		Roles:     append([]string(nil), match.Roles...),
		Method:    AuthMethodAPIKey,
		KeyID:     match.ID,
	}, nil
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
