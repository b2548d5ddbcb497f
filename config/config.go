package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/jonwraymond/regrid/accessor"
	"github.com/jonwraymond/regrid/auth"
	"github.com/jonwraymond/regrid/cache"
	"github.com/jonwraymond/regrid/secret"
)

// Setting keys.
const (
	KeyCachePolicy     = "matrix-memory-cache-policy"
	KeyCacheSize       = "maximum-matrix-memory-cache-size"
	KeyCacheStrict     = "matrix-memory-cache-strict-mode"
	KeyMatrixSource    = "matrix-source"
	KeyCacheDir        = "user-cache-directory"
	KeyDownloadTimeout = "url-download-timeout"
	KeyBackendOrder    = "backend-order"
	KeyHTTPHeaders     = "http-headers"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyMetricsExporter = "metrics-exporter"
	KeyTracingExporter = "tracing-exporter"
	KeyServerAddress   = "server-address"
	KeyRateLimit       = "server-rate-limit"
	KeyAdminAPIKeys    = "admin-api-keys"
	KeyAdminJWTSecret  = "admin-jwt-secret"
	KeyAdminJWTIssuer  = "admin-jwt-issuer"
)

// SizeNone disables the memory budget.
const SizeNone = "none"

// Backend names accepted in backend-order.
const (
	BackendPrecomputed = "precomputed"
	BackendEngine      = "engine"
)

// Config holds every regrid setting.
type Config struct {
	// CachePolicy is the memory cache eviction policy.
	CachePolicy string `koanf:"matrix-memory-cache-policy" validate:"oneof=off unlimited largest lru"`

	// CacheSize is the memory cache budget, e.g. "500MB", or "none".
	CacheSize string `koanf:"maximum-matrix-memory-cache-size" validate:"required,bytesize"`

	// CacheStrict refuses matrices whose estimated size does not fit.
	CacheStrict bool `koanf:"matrix-memory-cache-strict-mode"`

	// MatrixSource is a local directory or an http(s) repository URL.
	MatrixSource string `koanf:"matrix-source" validate:"required"`

	// CacheDir holds downloaded repository files.
	CacheDir string `koanf:"user-cache-directory"`

	// DownloadTimeout bounds each download attempt.
	DownloadTimeout time.Duration `koanf:"url-download-timeout" validate:"gte=0"`

	// BackendOrder lists the backends tried by a regrid call.
	BackendOrder []string `koanf:"backend-order" validate:"min=1,dive,oneof=precomputed engine"`

	// HTTPHeaders are sent to remote repositories. Values may hold secret
	// references such as "secretref:env:TOKEN".
	HTTPHeaders map[string]string `koanf:"http-headers"`

	LogLevel        string `koanf:"log-level" validate:"oneof=debug info warn error"`
	LogFormat       string `koanf:"log-format" validate:"oneof=json console"`
	MetricsExporter string `koanf:"metrics-exporter" validate:"oneof=otlp prometheus stdout none"`
	TracingExporter string `koanf:"tracing-exporter" validate:"oneof=otlp stdout none"`

	ServerAddress string  `koanf:"server-address" validate:"required"`
	RateLimit     float64 `koanf:"server-rate-limit" validate:"gte=0"`

	// AdminAPIKeys and AdminJWTSecret guard the mutating server endpoints.
	// With neither set those endpoints are open.
	AdminAPIKeys   []string `koanf:"admin-api-keys" validate:"dive,min=16"`
	AdminJWTSecret string   `koanf:"admin-jwt-secret" validate:"omitempty,min=32"`
	AdminJWTIssuer string   `koanf:"admin-jwt-issuer"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		CachePolicy:     cache.PolicyLargest,
		CacheSize:       "500MB",
		CacheStrict:     false,
		MatrixSource:    accessor.SystemURL,
		DownloadTimeout: 30 * time.Second,
		BackendOrder:    []string{BackendPrecomputed},
		HTTPHeaders:     map[string]string{},
		LogLevel:        "info",
		LogFormat:       "json",
		MetricsExporter: "prometheus",
		TracingExporter: "none",
		ServerAddress:   ":8080",
		RateLimit:       50,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("bytesize", func(fl validator.FieldLevel) bool {
		_, err := ParseSize(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	policy, err := cache.PolicyByName(c.CachePolicy)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	maxMem, err := c.MaxMemory()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := policy.Check(maxMem); err != nil {
		return fmt.Errorf("%w: %s=%s: %v", ErrInvalid, KeyCacheSize, c.CacheSize, err)
	}
	return nil
}

// expand substitutes environment variables in path settings.
func (c *Config) expand() error {
	var err error
	if c.MatrixSource, err = secret.ExpandEnvStrict(c.MatrixSource); err != nil {
		return fmt.Errorf("%s: %w", KeyMatrixSource, err)
	}
	if c.CacheDir, err = secret.ExpandEnvStrict(c.CacheDir); err != nil {
		return fmt.Errorf("%s: %w", KeyCacheDir, err)
	}
	if c.AdminJWTSecret, err = secret.ExpandEnvStrict(c.AdminJWTSecret); err != nil {
		return fmt.Errorf("%s: %w", KeyAdminJWTSecret, err)
	}
	for i, key := range c.AdminAPIKeys {
		if c.AdminAPIKeys[i], err = secret.ExpandEnvStrict(key); err != nil {
			return fmt.Errorf("%s: %w", KeyAdminAPIKeys, err)
		}
	}
	if strings.HasPrefix(c.CacheDir, "~/") {
		if home, herr := os.UserHomeDir(); herr == nil {
			c.CacheDir = filepath.Join(home, c.CacheDir[2:])
		}
	}
	return nil
}

// ParseSize parses a byte size such as "500MB" or "2 GiB". "none" yields
// cache.NoLimit.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, SizeNone) {
		return cache.NoLimit, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSize, s, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// MaxMemory returns the parsed cache budget.
func (c *Config) MaxMemory() (int64, error) { return ParseSize(c.CacheSize) }

// CacheConfig returns the memory cache settings.
func (c *Config) CacheConfig() (cache.Config, error) {
	maxMem, err := c.MaxMemory()
	if err != nil {
		return cache.Config{}, err
	}
	return cache.Config{Policy: c.CachePolicy, MaxMemory: maxMem, Strict: c.CacheStrict}, nil
}

// URLConfig returns the remote accessor settings.
func (c *Config) URLConfig() accessor.URLConfig {
	return accessor.URLConfig{
		URL:      c.MatrixSource,
		CacheDir: c.CacheDir,
		Timeout:  c.DownloadTimeout,
		Headers:  c.HTTPHeaders,
	}
}

// AdminAuthenticator returns the authenticator guarding the mutating server
// endpoints, or nil when no admin credentials are configured.
func (c *Config) AdminAuthenticator() auth.Authenticator {
	var auths []auth.Authenticator
	if len(c.AdminAPIKeys) > 0 {
		keys := make([]auth.APIKey, 0, len(c.AdminAPIKeys))
		for i, key := range c.AdminAPIKeys {
			keys = append(keys, auth.APIKey{
				ID:        fmt.Sprintf("admin-%d", i),
				Key:       key,
				Principal: "admin",
				Roles:     []string{auth.RoleAdmin},
			})
		}
		auths = append(auths, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, keys...))
	}
	if c.AdminJWTSecret != "" {
		auths = append(auths, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret: []byte(c.AdminJWTSecret),
			Issuer: c.AdminJWTIssuer,
		}))
	}
	switch len(auths) {
	case 0:
		return nil
	case 1:
		return auths[0]
	default:
		return auth.NewCompositeAuthenticator(auths...)
	}
}

// clone returns a deep copy of c.
func (c Config) clone() Config {
	out := c
	out.BackendOrder = append([]string(nil), c.BackendOrder...)
	out.AdminAPIKeys = append([]string(nil), c.AdminAPIKeys...)
	out.HTTPHeaders = make(map[string]string, len(c.HTTPHeaders))
	for k, v := range c.HTTPHeaders {
		out.HTTPHeaders[k] = v
	}
	return out
}
