package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/regrid/resilience"
)

func ExampleCircuitBreaker_State() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "matrix-repository",
		MaxFailures:  2,
		ResetTimeout: time.Minute,
	})
	ctx := context.Background()

	fmt.Println("initial:", cb.State())
	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func(context.Context) error {
			return errors.New("503 service unavailable")
		})
	}
	fmt.Println("after failures:", cb.State())

	err := cb.Execute(ctx, func(context.Context) error { return nil })
	fmt.Println(errors.Is(err, resilience.ErrCircuitOpen))
	// Output:
	// initial: closed
	// after failures: open
	// true
}

func ExampleRetry_Execute() {
	r := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	fmt.Println(err, attempts)
	// Output:
	// <nil> 3
}

func ExampleExecutor_Execute() {
	executor := resilience.NewExecutor(
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
		})),
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})),
		resilience.WithTimeout(time.Second),
	)

	err := executor.Execute(context.Background(), func(context.Context) error {
		return errors.New("checksum mismatch")
	})
	fmt.Println(errors.Is(err, resilience.ErrMaxRetriesExceeded))
	// Output:
	// true
}
