package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig bounds the number of operations in flight.
type BulkheadConfig struct {
	// MaxConcurrent is the number of slots.
	// Default: 10
	MaxConcurrent int

	// MaxWait is how long Acquire queues for a slot. Zero fails at once.
	MaxWait time.Duration
}

// Bulkhead hands out a fixed number of slots. Matrix downloads go through
// one so a cold cache cannot open an unbounded number of connections.
type Bulkhead struct {
	slots   int64
	maxWait time.Duration
	sem     *semaphore.Weighted

	active   atomic.Int64
	peak     atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead creates a Bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	slots := int64(config.MaxConcurrent)
	if slots <= 0 {
		slots = 10
	}
	return &Bulkhead{
		slots:   slots,
		maxWait: config.MaxWait,
		sem:     semaphore.NewWeighted(slots),
	}
}

// Acquire takes a slot. It returns ErrBulkheadFull when none frees up
// within MaxWait, and the context error when ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if !b.sem.TryAcquire(1) {
		if err := b.wait(ctx); err != nil {
			return err
		}
	}
	n := b.active.Add(1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			return nil
		}
	}
}

func (b *Bulkhead) wait(ctx context.Context) error {
	if b.maxWait <= 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}
	wctx, cancel := context.WithTimeout(ctx, b.maxWait)
	defer cancel()
	if err := b.sem.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.rejected.Add(1)
		return ErrBulkheadFull
	}
	return nil
}

// Release returns a slot taken by Acquire.
func (b *Bulkhead) Release() {
	b.active.Add(-1)
	b.sem.Release(1)
}

// Execute runs op while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// BulkheadMetrics is a snapshot of slot usage.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}

// Metrics returns the current slot usage.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	active := int(b.active.Load())
	return BulkheadMetrics{
		Active:        active,
		MaxActive:     int(b.peak.Load()),
		Available:     int(b.slots) - active,
		MaxConcurrent: int(b.slots),
		Rejected:      b.rejected.Load(),
	}
}
