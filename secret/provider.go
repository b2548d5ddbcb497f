package secret

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// EnvProvider resolves references naming environment variables.
type EnvProvider struct{}

// Name implements Provider.
func (EnvProvider) Name() string { return "env" }

// Resolve returns the value of the variable named ref.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, ref)
	}
	return v, nil
}

// FileProvider resolves references naming files, such as mounted secrets.
// Trailing newlines are trimmed.
type FileProvider struct{}

// Name implements Provider.
func (FileProvider) Name() string { return "file" }

// Resolve returns the content of the file at ref.
func (FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	b, err := os.ReadFile(ref)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: file %s", ErrNotFound, ref)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

var (
	_ Provider = EnvProvider{}
	_ Provider = FileProvider{}
)
