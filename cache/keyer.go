package cache

import (
	"fmt"

	"github.com/jonwraymond/regrid/internal/canon"
)

// Keyer derives cache keys from the arguments of a request.
//
// Contract:
//   - Determinism: equal arguments produce equal keys regardless of map
//     iteration order; argument order is significant.
//   - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(args []any) (string, error)
}

// DefaultKeyer hashes the canonical JSON encoding of the arguments with
// SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key returns the hex digest of args.
func (k *DefaultKeyer) Key(args []any) (string, error) {
	sum, err := canon.Sum(args)
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize arguments: %w", err)
	}
	return sum, nil
}

var _ Keyer = (*DefaultKeyer)(nil)
