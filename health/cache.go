package health

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/jonwraymond/regrid/cache"
)

// CacheInfoer reports the state of a matrix memory cache.
type CacheInfoer interface {
	Info() cache.Info
}

// CacheCheckerConfig configures CacheChecker.
type CacheCheckerConfig struct {
	// WarningThreshold is the fraction of the budget in use that reports
	// degraded. Value should be between 0 and 1. Default: 0.9
	WarningThreshold float64
}

// CacheChecker reports memory cache pressure. A cache above its budget is
// unhealthy; one close to it is degraded.
type CacheChecker struct {
	cache  CacheInfoer
	config CacheCheckerConfig
}

// NewCacheChecker creates a checker for c.
func NewCacheChecker(c CacheInfoer, config CacheCheckerConfig) *CacheChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold > 1 {
		config.WarningThreshold = 0.9
	}
	return &CacheChecker{cache: c, config: config}
}

// Name implements Checker.
func (c *CacheChecker) Name() string { return "matrix-cache" }

// Check implements Checker.
func (c *CacheChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	info := c.cache.Info()
	details := map[string]any{
		"policy":     info.Policy,
		"hits":       info.Hits,
		"misses":     info.Misses,
		"count":      info.Count,
		"curr_bytes": info.CurrSize,
		"max_bytes":  info.MaxSize,
		"curr_size":  humanize.Bytes(uint64(max(info.CurrSize, 0))),
	}
	if total := info.Hits + info.Misses; total > 0 {
		details["hit_ratio"] = float64(info.Hits) / float64(total)
	}

	switch info.Policy {
	case cache.PolicyOff:
		return Healthy("matrix cache disabled").WithDetails(details)
	case cache.PolicyUnlimited:
		return Healthy(fmt.Sprintf("%d matrices cached, no limit", info.Count)).WithDetails(details)
	}

	if info.MaxSize <= 0 {
		return Unhealthy("matrix cache has no budget", ErrCheckFailed).WithDetails(details)
	}
	details["max_size"] = humanize.Bytes(uint64(info.MaxSize))
	usage := float64(info.CurrSize) / float64(info.MaxSize)
	details["usage_percent"] = usage * 100

	switch {
	case info.CurrSize > info.MaxSize:
		return Unhealthy(fmt.Sprintf("matrix cache over budget: %.1f%%", usage*100), ErrCheckFailed).WithDetails(details)
	case usage >= c.config.WarningThreshold:
		return Degraded(fmt.Sprintf("matrix cache nearly full: %.1f%%", usage*100)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("matrix cache usage: %.1f%%", usage*100)).WithDetails(details)
	}
}
