// Package resilience guards calls to remote matrix repositories.
//
// The patterns wrap well-known libraries behind a small common shape,
// func(context.Context) error, so they can be stacked by an Executor:
//
//   - Circuit Breaker: github.com/sony/gobreaker/v2. Stops calling a
//     repository after consecutive failures and probes it again later.
//
//   - Retry: github.com/cenkalti/backoff/v5. Exponential or constant
//     backoff with jitter; errors rejected by RetryIf end the loop.
//
//   - Rate Limiter: golang.org/x/time/rate token bucket.
//
//   - Bulkhead: golang.org/x/sync/semaphore. Bounds concurrent downloads.
//
//   - Timeout: a per-attempt deadline applied by the Executor.
//
// # Usage
//
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        Name:        "matrix-repository",
//	        MaxFailures: 5,
//	    })),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})),
//	    resilience.WithTimeout(30*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return download(ctx, url)
//	})
package resilience
