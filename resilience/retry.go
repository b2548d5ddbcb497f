package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the maximum delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter randomizes exponential delays by up to 25%.
	Jitter bool

	// RetryIf determines if an error should trigger a retry.
	// Default: all non-nil errors except context cancellation.
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry implements retry with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}

	return &Retry{config: config}
}

// newBackOff returns a fresh schedule; backoff values are stateful.
func (r *Retry) newBackOff() backoff.BackOff {
	if r.config.Strategy == BackoffConstant {
		return backoff.NewConstantBackOff(r.config.InitialDelay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.config.InitialDelay
	b.MaxInterval = r.config.MaxDelay
	b.Multiplier = r.config.Multiplier
	b.RandomizationFactor = 0
	if r.config.Jitter {
		b.RandomizationFactor = 0.25
	}
	return b
}

// Execute runs the operation until it succeeds, fails with an error
// rejected by RetryIf, or runs out of attempts. Exhausted attempts return an
// error wrapping both ErrMaxRetriesExceeded and the last failure.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	attempts := 0
	var final error

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := op(ctx)
		if err != nil && !r.config.RetryIf(err) {
			final = err
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(uint(r.config.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			if r.config.OnRetry != nil {
				r.config.OnRetry(attempts, err, delay)
			}
		}),
	)

	switch {
	case err == nil:
		return nil
	case final != nil:
		return final
	case attempts >= r.config.MaxAttempts && ctx.Err() == nil:
		return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempts, err)
	default:
		return err
	}
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
