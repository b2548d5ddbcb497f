package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/regrid/index"
)

// IndexLoader returns the matrix index, loading it if needed.
type IndexLoader interface {
	Index(ctx context.Context) (*index.Index, error)
}

// IndexChecker reports whether the matrix index is available. An empty
// index is degraded since no regrid call can succeed.
type IndexChecker struct {
	loader IndexLoader
}

// NewIndexChecker creates a checker for l.
func NewIndexChecker(l IndexLoader) *IndexChecker {
	return &IndexChecker{loader: l}
}

// Name implements Checker.
func (c *IndexChecker) Name() string { return "matrix-index" }

// Check implements Checker.
func (c *IndexChecker) Check(ctx context.Context) Result {
	ix, err := c.loader.Index(ctx)
	if err != nil {
		return Unhealthy("matrix index unavailable", err)
	}
	details := map[string]any{
		"entries": ix.Len(),
		"dropped": len(ix.Dropped()),
	}
	if ix.Len() == 0 {
		return Degraded("matrix index is empty").WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d matrices indexed", ix.Len())).WithDetails(details)
}
