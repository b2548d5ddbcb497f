package accessor

import (
	"context"
	"path/filepath"
	"strings"
)

// SystemURL is the public ECMWF matrix repository.
const SystemURL = "https://get.ecmwf.int/repository/earthkit/regrid/db/1/"

// Accessor resolves repository files to local paths.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: methods that may download honor cancellation.
type Accessor interface {
	// Path returns the repository location as configured.
	Path() string

	// IsLocal reports whether the repository is a local directory.
	IsLocal() bool

	// IndexPath returns the path of the index document, fetching it if no
	// local copy exists.
	IndexPath(ctx context.Context) (string, error)

	// MatrixPath returns the path of the matrix file with the given
	// repository-relative name.
	MatrixPath(ctx context.Context, name string) (string, error)

	// Reload refreshes the index. Without force, a remote index is fetched
	// only when its checksum differs from the local copy.
	Reload(ctx context.Context, force bool) error

	// CheckedRemote reports whether the remote checksum was consulted since
	// the last Reset.
	CheckedRemote() bool

	// Reset forgets the resolved index path and the remote check.
	Reset()

	// Close releases resources held by the accessor.
	Close() error
}

// New returns a URL accessor for http and https sources and a Local
// accessor otherwise.
func New(source string, cfg URLConfig, opts ...URLOption) (Accessor, error) {
	if IsURL(source) {
		cfg.URL = source
		return NewURL(cfg, opts...)
	}
	return NewLocal(source), nil
}

// IsURL reports whether source names an HTTP(S) repository.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// cleanName validates a repository-relative matrix name.
func cleanName(name string) (string, error) {
	local := filepath.FromSlash(name)
	if name == "" || !filepath.IsLocal(local) {
		return "", ErrInvalidName
	}
	return local, nil
}
