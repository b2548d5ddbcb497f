package config

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/regrid/accessor"
	"github.com/jonwraymond/regrid/auth"
	"github.com/jonwraymond/regrid/cache"
	"github.com/jonwraymond/regrid/secret"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() error = %v", err)
	}

	cc, err := cfg.CacheConfig()
	if err != nil {
		t.Fatalf("CacheConfig() error = %v", err)
	}
	want := cache.Config{Policy: cache.PolicyLargest, MaxMemory: 500_000_000, Strict: false}
	if diff := cmp.Diff(want, cc); diff != "" {
		t.Errorf("CacheConfig() mismatch (-want +got):\n%s", diff)
	}
	if cfg.MatrixSource != accessor.SystemURL {
		t.Errorf("MatrixSource = %q, want %q", cfg.MatrixSource, accessor.SystemURL)
	}
	if cfg.DownloadTimeout != 30*time.Second {
		t.Errorf("DownloadTimeout = %v, want 30s", cfg.DownloadTimeout)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "500MB", want: 500_000_000},
		{in: "2 GiB", want: 2 << 30},
		{in: "1024", want: 1024},
		{in: "none", want: cache.NoLimit},
		{in: "None", want: cache.NoLimit},
		{in: "0", want: 0},
		{in: "lots", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSize) {
					t.Fatalf("ParseSize(%q) error = %v, want ErrInvalidSize", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSize(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown policy", func(c *Config) { c.CachePolicy = "fifo" }},
		{"bad size", func(c *Config) { c.CacheSize = "huge" }},
		{"empty source", func(c *Config) { c.MatrixSource = "" }},
		{"negative timeout", func(c *Config) { c.DownloadTimeout = -time.Second }},
		{"no backends", func(c *Config) { c.BackendOrder = nil }},
		{"unknown backend", func(c *Config) { c.BackendOrder = []string{"mir"} }},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"bad exporter", func(c *Config) { c.MetricsExporter = "statsd" }},
		{"unbounded lru", func(c *Config) { c.CachePolicy, c.CacheSize = cache.PolicyLRU, SizeNone }},
		{"zero largest", func(c *Config) { c.CacheSize = "0" }},
		{"short admin key", func(c *Config) { c.AdminAPIKeys = []string{"short"} }},
		{"short jwt secret", func(c *Config) { c.AdminJWTSecret = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
matrix-memory-cache-policy: lru
maximum-matrix-memory-cache-size: 1GB
matrix-source: ${REGRID_TEST_ROOT}/db
http-headers:
  Authorization: secretref:env:REGRID_TEST_TOKEN
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REGRID_TEST_ROOT", dir)
	t.Setenv("REGRID_MATRIX_MEMORY_CACHE_STRICT_MODE", "true")
	t.Setenv("REGRID_MAXIMUM_MATRIX_MEMORY_CACHE_SIZE", "2GB")
	t.Setenv("REGRID_BACKEND_ORDER", "precomputed, engine")
	t.Setenv("REGRID_URL_DOWNLOAD_TIMEOUT", "5s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.CachePolicy != cache.PolicyLRU {
		t.Errorf("CachePolicy = %q, want lru", cfg.CachePolicy)
	}
	if cfg.CacheSize != "2GB" {
		t.Errorf("CacheSize = %q, want env override 2GB", cfg.CacheSize)
	}
	if !cfg.CacheStrict {
		t.Error("CacheStrict = false, want true")
	}
	if want := dir + "/db"; cfg.MatrixSource != want {
		t.Errorf("MatrixSource = %q, want %q", cfg.MatrixSource, want)
	}
	if diff := cmp.Diff([]string{BackendPrecomputed, BackendEngine}, cfg.BackendOrder); diff != "" {
		t.Errorf("BackendOrder mismatch (-want +got):\n%s", diff)
	}
	if cfg.DownloadTimeout != 5*time.Second {
		t.Errorf("DownloadTimeout = %v, want 5s", cfg.DownloadTimeout)
	}
	if got := cfg.HTTPHeaders["Authorization"]; got != "secretref:env:REGRID_TEST_TOKEN" {
		t.Errorf("HTTPHeaders[Authorization] = %q", got)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() error = nil, want error for missing file")
	}
}

func TestLoad_MissingDefaultFileIgnored(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CachePolicy != cache.PolicyLargest {
		t.Errorf("CachePolicy = %q, want default", cfg.CachePolicy)
	}
}

func TestLoad_MissingEnvVar(t *testing.T) {
	t.Setenv("REGRID_MATRIX_SOURCE", "${REGRID_TEST_UNSET_VAR}/db")
	_, err := Load(writeEmpty(t))
	if !errors.Is(err, secret.ErrMissingEnv) {
		t.Fatalf("Load() error = %v, want ErrMissingEnv", err)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("REGRID_MATRIX_MEMORY_CACHE_POLICY", "fifo")
	_, err := Load(writeEmpty(t))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Load() error = %v, want ErrInvalid", err)
	}
}

func TestLoad_AdminCredentials(t *testing.T) {
	t.Setenv("REGRID_TEST_ADMIN_KEY", "admin-key-0123456789")
	t.Setenv("REGRID_ADMIN_API_KEYS", "${REGRID_TEST_ADMIN_KEY}, second-key-0123456789")
	t.Setenv("REGRID_ADMIN_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load(writeEmpty(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := []string{"admin-key-0123456789", "second-key-0123456789"}
	if diff := cmp.Diff(want, cfg.AdminAPIKeys); diff != "" {
		t.Errorf("AdminAPIKeys mismatch (-want +got):\n%s", diff)
	}

	a := cfg.AdminAuthenticator()
	if a == nil || a.Name() != "composite" {
		t.Fatalf("AdminAuthenticator() = %v, want a composite of key and token checks", a)
	}
	id, err := a.Authenticate(context.Background(), http.Header{"X-Api-Key": []string{"second-key-0123456789"}})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.KeyID != "admin-1" || !id.HasRole(auth.RoleAdmin) {
		t.Errorf("identity = %+v", id)
	}
}

func TestAdminAuthenticator(t *testing.T) {
	cfg := Defaults()
	if a := cfg.AdminAuthenticator(); a != nil {
		t.Errorf("AdminAuthenticator() = %v, want nil without credentials", a)
	}
	cfg.AdminJWTSecret = "0123456789abcdef0123456789abcdef"
	if a := cfg.AdminAuthenticator(); a == nil || a.Name() != "jwt" {
		t.Errorf("AdminAuthenticator() = %v, want jwt", a)
	}
}

func writeEmpty(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
