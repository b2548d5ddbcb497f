package accessor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jonwraymond/regrid/index"
)

// Local serves a repository from a directory.
type Local struct {
	dir string
}

// NewLocal returns an accessor for the repository in dir.
func NewLocal(dir string) *Local { return &Local{dir: dir} }

// Path returns the repository directory.
func (l *Local) Path() string { return l.dir }

// IsLocal always reports true.
func (l *Local) IsLocal() bool { return true }

// IndexPath returns index.json inside the directory.
func (l *Local) IndexPath(context.Context) (string, error) {
	return filepath.Join(l.dir, index.FileName), nil
}

// MatrixPath joins name to the directory after rejecting escaping paths.
func (l *Local) MatrixPath(_ context.Context, name string) (string, error) {
	local, err := cleanName(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}
	return filepath.Join(l.dir, local), nil
}

// Reload is a no-op; the directory is always current.
func (l *Local) Reload(context.Context, bool) error { return nil }

// CheckedRemote always reports false.
func (l *Local) CheckedRemote() bool { return false }

// Reset is a no-op.
func (l *Local) Reset() {}

// Close is a no-op.
func (l *Local) Close() error { return nil }

var _ Accessor = (*Local)(nil)
