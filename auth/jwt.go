package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Secret is the HS256 signing key.
	Secret []byte

	// Issuer is the expected token issuer (iss claim). Empty accepts any.
	Issuer string

	// Audience is the expected token audience (aud claim). Empty accepts any.
	Audience string

	// RolesClaim is the claim containing user roles.
	// Default: "roles"
	RolesClaim string

	// Leeway is the clock skew tolerated for exp and nbf.
	// Default: 30 seconds
	Leeway time.Duration
}

// JWTAuthenticator validates bearer tokens signed with HS256.
type JWTAuthenticator struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config JWTConfig) *JWTAuthenticator {
	if config.RolesClaim == "" {
		config.RolesClaim = "roles"
	}
	if config.Leeway <= 0 {
		config.Leeway = 30 * time.Second
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(config.Leeway),
		jwt.WithIssuedAt(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	return &JWTAuthenticator{config: config, parser: jwt.NewParser(opts...)}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string { return "jwt" }

// Authenticate validates the bearer token of the Authorization header.
func (a *JWTAuthenticator) Authenticate(_ context.Context, header http.Header) (*Identity, error) {
	tokenString, ok := strings.CutPrefix(header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return nil, ErrMissingCredentials
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(*jwt.Token) (any, error) {
		return a.config.Secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	case err != nil:
		return nil, ErrInvalidCredentials
	}
	return a.identity(claims), nil
}

func (a *JWTAuthenticator) identity(claims jwt.MapClaims) *Identity {
	id := &Identity{Method: AuthMethodJWT}
	id.Principal, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	if roles, ok := claims[a.config.RolesClaim].([]any); ok {
		for _, r := range roles {
			if s, ok := r.(string); ok {
				id.Roles = append(id.Roles, s)
			}
		}
	}
	return id
}

var _ Authenticator = (*JWTAuthenticator)(nil)
