package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func stateFrom(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in errors and state change callbacks.
	// Default: "default"
	Name string

	// MaxFailures is the number of consecutive failures before opening the
	// circuit.
	// Default: 5
	MaxFailures uint32

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the max requests allowed in half-open state.
	// Default: 1
	HalfOpenMaxRequests uint32

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: all non-nil errors except context cancellation.
	IsFailure func(err error) bool
}

// CircuitBreaker implements the circuit breaker pattern on top of gobreaker.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	cb     *gobreaker.CircuitBreaker[struct{}]
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Name == "" {
		config.Name = "default"
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests == 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.HalfOpenMaxRequests,
		Timeout:     config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return !config.IsFailure(err)
		},
	}
	if config.OnStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			config.OnStateChange(stateFrom(from), stateFrom(to))
		}
	}

	return &CircuitBreaker{
		config: config,
		cb:     gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Execute runs the operation through the circuit breaker. Rejected calls
// return ErrCircuitOpen without running op.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := cb.cb.Execute(func() (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.config.Name)
	}
	return err
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string { return cb.config.Name }

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State { return stateFrom(cb.cb.State()) }

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	counts := cb.cb.Counts()
	return CircuitBreakerMetrics{
		State:                cb.State(),
		Requests:             counts.Requests,
		Failures:             counts.TotalFailures,
		Successes:            counts.TotalSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics for the current
// generation. Counters reset whenever the state changes.
type CircuitBreakerMetrics struct {
	State                State
	Requests             uint32
	Failures             uint32
	Successes            uint32
	ConsecutiveFailures  uint32
	ConsecutiveSuccesses uint32
}
