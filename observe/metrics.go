package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records regrid call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRegrid records a regrid call with duration and error status.
	RecordRegrid(ctx context.Context, op Operation, duration time.Duration, err error)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates regrid call instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"regrid.exec.total",
		metric.WithDescription("Total number of regrid calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"regrid.exec.errors",
		metric.WithDescription("Total number of failed regrid calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"regrid.exec.duration_ms",
		metric.WithDescription("Regrid call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordRegrid(ctx context.Context, op Operation, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{attribute.String("regrid.method", op.Method)}
	if op.Backend != "" {
		attrs = append(attrs, attribute.String("regrid.backend", op.Backend))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

// CacheMetrics reports matrix memory cache activity.
type CacheMetrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	evicted   metric.Int64Counter
	size      metric.Int64Gauge
	count     metric.Int64Gauge
}

// NewCacheMetrics creates cache instruments on meter.
func NewCacheMetrics(meter metric.Meter) (*CacheMetrics, error) {
	var (
		m   CacheMetrics
		err error
	)
	if m.hits, err = meter.Int64Counter("regrid.cache.hits",
		metric.WithDescription("Matrix memory cache hits"),
		metric.WithUnit("{hit}")); err != nil {
		return nil, err
	}
	if m.misses, err = meter.Int64Counter("regrid.cache.misses",
		metric.WithDescription("Matrix memory cache misses"),
		metric.WithUnit("{miss}")); err != nil {
		return nil, err
	}
	if m.evictions, err = meter.Int64Counter("regrid.cache.evictions",
		metric.WithDescription("Matrices evicted from the memory cache"),
		metric.WithUnit("{matrix}")); err != nil {
		return nil, err
	}
	if m.evicted, err = meter.Int64Counter("regrid.cache.evicted_bytes",
		metric.WithDescription("Bytes released by memory cache evictions"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.size, err = meter.Int64Gauge("regrid.cache.size_bytes",
		metric.WithDescription("Bytes held by the matrix memory cache"),
		metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if m.count, err = meter.Int64Gauge("regrid.cache.entries",
		metric.WithDescription("Matrices held by the memory cache"),
		metric.WithUnit("{matrix}")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordHit counts a cache hit.
func (m *CacheMetrics) RecordHit(ctx context.Context) { m.hits.Add(ctx, 1) }

// RecordMiss counts a cache miss.
func (m *CacheMetrics) RecordMiss(ctx context.Context) { m.misses.Add(ctx, 1) }

// RecordEviction counts one evicted entry of the given size.
func (m *CacheMetrics) RecordEviction(ctx context.Context, size int64) {
	m.evictions.Add(ctx, 1)
	m.evicted.Add(ctx, size)
}

// RecordUsage records the current cache footprint.
func (m *CacheMetrics) RecordUsage(ctx context.Context, bytes int64, count int) {
	m.size.Record(ctx, bytes)
	m.count.Record(ctx, int64(count))
}

type noopMetrics struct{}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordRegrid(context.Context, Operation, time.Duration, error) {}
