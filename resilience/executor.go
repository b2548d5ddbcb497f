package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Op is an operation guarded by an Executor.
type Op = func(context.Context) error

// guard is one layer of an Executor.
type guard interface {
	Execute(ctx context.Context, op Op) error
}

// timeoutGuard bounds a single attempt.
type timeoutGuard time.Duration

func (d timeoutGuard) Execute(ctx context.Context, op Op) error {
	tctx, cancel := context.WithTimeout(ctx, time.Duration(d))
	defer cancel()

	err := op(tctx)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrTimeout, time.Duration(d), err)
	}
	return err
}

// Executor runs operations through a fixed stack of guards. From the
// outside in: rate limiter, bulkhead, circuit breaker, retry, per-attempt
// timeout. Unset layers are skipped.
type Executor struct {
	limiter  *RateLimiter
	bulkhead *Bulkhead
	breaker  *CircuitBreaker
	retry    *Retry
	timeout  time.Duration

	stack []guard // outermost first
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRateLimiter makes calls take a token first.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) { e.limiter = rl }
}

// WithBulkhead bounds the calls in flight.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) { e.bulkhead = b }
}

// WithCircuitBreaker fails calls fast while the breaker is open.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) { e.breaker = cb }
}

// WithRetry retries failed attempts. The breaker sees one call per
// Execute, not one per attempt.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) { e.retry = r }
}

// WithTimeout bounds every attempt to d. Zero disables the limit.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.limiter != nil {
		e.stack = append(e.stack, e.limiter)
	}
	if e.bulkhead != nil {
		e.stack = append(e.stack, e.bulkhead)
	}
	if e.breaker != nil {
		e.stack = append(e.stack, e.breaker)
	}
	if e.retry != nil {
		e.stack = append(e.stack, e.retry)
	}
	if e.timeout > 0 {
		e.stack = append(e.stack, timeoutGuard(e.timeout))
	}
	return e
}

// CircuitBreaker returns the configured breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker { return e.breaker }

// Execute runs op through the guard stack. The timeout reaches op through
// its context, so op must honor cancellation.
func (e *Executor) Execute(ctx context.Context, op Op) error {
	return e.run(ctx, 0, op)
}

func (e *Executor) run(ctx context.Context, depth int, op Op) error {
	if depth == len(e.stack) {
		return op(ctx)
	}
	return e.stack[depth].Execute(ctx, func(ctx context.Context) error {
		return e.run(ctx, depth+1, op)
	})
}
