package health_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/regrid/cache"
	"github.com/jonwraymond/regrid/health"
)

type cacheInfo cache.Info

func (c cacheInfo) Info() cache.Info { return cache.Info(c) }

func ExampleNewCacheChecker() {
	checker := health.NewCacheChecker(cacheInfo{
		Policy:   cache.PolicyLargest,
		MaxSize:  500_000_000,
		CurrSize: 480_000_000,
		Count:    3,
	}, health.CacheCheckerConfig{WarningThreshold: 0.9})

	result := checker.Check(context.Background())
	fmt.Println("Checker name:", checker.Name())
	fmt.Println("Status:", result.Status)
	fmt.Println("Message:", result.Message)
	fmt.Println("Max size:", result.Details["max_size"])
	// Output:
	// Checker name: matrix-cache
	// Status: degraded
	// Message: matrix cache nearly full: 96.0%
	// Max size: 500 MB
}

func ExampleAggregator() {
	agg := health.NewAggregator()
	agg.Register(health.NewCheckerFunc("matrix-index", func(ctx context.Context) health.Result {
		return health.Healthy("12 matrices indexed")
	}))
	agg.Register(health.NewCheckerFunc("matrix-cache", func(ctx context.Context) health.Result {
		return health.Degraded("matrix cache nearly full")
	}))

	results := agg.CheckAll(context.Background())
	fmt.Println("Checkers:", agg.CheckerNames())
	fmt.Println("Overall:", health.OverallStatus(results))
	// Output:
	// Checkers: [matrix-index matrix-cache]
	// Overall: degraded
}
