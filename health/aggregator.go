package health

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Timeout bounds a CheckAll call.
	// Default: 10 seconds
	Timeout time.Duration

	// Sequential runs the checks one after another.
	// Default: false
	Sequential bool
}

// Aggregator combines several checkers.
type Aggregator struct {
	config AggregatorConfig

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// NewAggregator creates an Aggregator.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	var cfg AggregatorConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Aggregator{config: cfg, checkers: make(map[string]Checker)}
}

// Register adds c under its name, replacing any checker with that name.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := c.Name()
	if _, ok := a.checkers[name]; !ok {
		a.order = append(a.order, name)
	}
	a.checkers[name] = c
}

// Unregister removes the checker named name.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.checkers, name)
	a.order = slices.DeleteFunc(a.order, func(n string) bool { return n == name })
}

// CheckerNames returns the registered names in registration order.
func (a *Aggregator) CheckerNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// Check runs the checker named name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	c, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	return run(ctx, c), nil
}

// CheckAll runs every checker and returns the results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	checkers := make([]Checker, 0, len(a.order))
	for _, name := range a.order {
		checkers = append(checkers, a.checkers[name])
	}
	a.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	results := make([]Result, len(checkers))
	if a.config.Sequential {
		for i, c := range checkers {
			results[i] = run(ctx, c)
		}
	} else {
		var g errgroup.Group
		for i, c := range checkers {
			g.Go(func() error {
				results[i] = run(ctx, c)
				return nil
			})
		}
		_ = g.Wait()
	}

	out := make(map[string]Result, len(checkers))
	for i, c := range checkers {
		out[c.Name()] = results[i]
	}
	return out
}

// OverallStatus returns the worst status in results, or StatusHealthy when
// there are none.
func OverallStatus(results map[string]Result) Status {
	status := StatusHealthy
	for _, r := range results {
		status = max(status, r.Status)
	}
	return status
}

// run executes c, giving up when ctx is done.
func run(ctx context.Context, c Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		r := c.Check(ctx)
		r.Duration = time.Since(start)
		if r.Timestamp.IsZero() {
			r.Timestamp = start
		}
		done <- r
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}
