package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRetry_Defaults(t *testing.T) {
	r := NewRetry(RetryConfig{})
	cfg := r.Config()

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2", cfg.Multiplier)
	}
	if cfg.RetryIf == nil {
		t.Error("RetryIf not defaulted")
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errRepository
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return errRepository
	})
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("error = %v, want ErrMaxRetriesExceeded", err)
	}
	if !errors.Is(err, errRepository) {
		t.Errorf("error = %v, want it to wrap the last failure", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetry_RetryIfStops(t *testing.T) {
	permanent := errors.New("404 not found")
	r := NewRetry(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		RetryIf:      func(err error) bool { return !errors.Is(err, permanent) },
	})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return permanent
	})
	if err != permanent {
		t.Errorf("error = %v, want %v unwrapped", err, permanent)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_OnRetry(t *testing.T) {
	var calls []int
	r := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Strategy:     BackoffConstant,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			if delay != time.Millisecond {
				t.Errorf("delay = %v, want 1ms", delay)
			}
			calls = append(calls, attempt)
		},
	})

	_ = r.Execute(context.Background(), failing)

	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", calls)
	}
}

func TestRetry_ContextCanceledDuringWait(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := r.Execute(ctx, func(context.Context) error {
		attempts++
		return errRepository
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("cancellation reported as exhausted retries")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_ExponentialDelays(t *testing.T) {
	var delays []time.Duration
	r := NewRetry(RetryConfig{
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		MaxDelay:     3 * time.Millisecond,
		OnRetry: func(_ int, _ error, delay time.Duration) {
			delays = append(delays, delay)
		},
	})

	_ = r.Execute(context.Background(), failing)

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
}
