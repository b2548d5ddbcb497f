package auth

import (
	"slices"
	"time"
)

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// RoleAdmin may clear the cache, reload the index and change settings.
const RoleAdmin = "admin"

// Identity represents an authenticated principal.
type Identity struct {
	// Principal is the unique identifier (e.g., user ID, key owner).
	Principal string

	// Roles are the roles assigned to this identity.
	Roles []string

	// Method indicates how authentication was performed.
	Method AuthMethod

	// KeyID identifies the API key used, if any.
	KeyID string

	// ExpiresAt is when this identity expires (zero = never).
	ExpiresAt time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsExpired checks if the identity has expired.
func (id *Identity) IsExpired() bool {
	return !id.ExpiresAt.IsZero() && time.Now().After(id.ExpiresAt)
}
