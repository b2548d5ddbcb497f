package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/regrid/observe/exporters"
)

// Observer hands out the telemetry primitives of one process.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Shutdown must honor cancellation/deadlines.
// - Errors: Shutdown is idempotent; later calls return the first result.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger

	// TracerProvider and MeterProvider are handed to third-party
	// instrumentation such as HTTP middleware.
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider

	// Shutdown flushes pending spans and metrics.
	Shutdown(ctx context.Context) error
}

// Logger is a minimal structured logging interface.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort and must not panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that adds fields to every entry.
	With(fields ...Field) Logger
}

// Field is a key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type observer struct {
	name   string
	tp     trace.TracerProvider
	mp     metric.MeterProvider
	logger Logger

	// flush holds the shutdown hooks of the SDK providers, in order.
	flush []func(context.Context) error

	once        sync.Once
	shutdownErr error
}

// NewObserver builds the providers selected by cfg. Disabled signals get
// no-op providers. Enabled providers are also installed as the otel
// globals.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &observer{
		name:   cfg.ServiceName,
		tp:     tracenoop.NewTracerProvider(),
		mp:     metricnoop.NewMeterProvider(),
		logger: NopLogger(),
	}
	if cfg.Logging.Enabled {
		o.logger = NewLoggerWithConfig(cfg.Logging).With(F("service", cfg.ServiceName))
	}
	if !cfg.Tracing.Enabled && !cfg.Metrics.Enabled {
		return o, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	if cfg.Tracing.Enabled {
		tp, err := newTracerProvider(ctx, cfg.Tracing, res)
		if err != nil {
			return nil, fmt.Errorf("observe: tracing: %w", err)
		}
		otel.SetTracerProvider(tp)
		o.tp = tp
		o.flush = append(o.flush, named("tracer", tp.Shutdown))
	}

	if cfg.Metrics.Enabled {
		mp, err := newMeterProvider(ctx, cfg.Metrics, res)
		if err != nil {
			// Release the tracer provider built above.
			_ = o.Shutdown(ctx)
			return nil, fmt.Errorf("observe: metrics: %w", err)
		}
		otel.SetMeterProvider(mp)
		o.mp = mp
		o.flush = append(o.flush, named("meter", mp.Shutdown))
	}
	return o, nil
}

func named(what string, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("%s shutdown: %w", what, err)
		}
		return nil
	}
}

func newTracerProvider(ctx context.Context, cfg TracingConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := exporters.NewSpanExporter(ctx, cfg.Exporter, exporters.Options{})
	if err != nil {
		return nil, err
	}

	root := sdktrace.TraceIDRatioBased(cfg.SamplePct)
	if cfg.SamplePct >= 1 {
		root = sdktrace.AlwaysSample()
	} else if cfg.SamplePct <= 0 {
		root = sdktrace.NeverSample()
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(root)),
	}
	if exp != nil {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

func newMeterProvider(ctx context.Context, cfg MetricsConfig, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := exporters.NewMetricReader(ctx, cfg.Exporter, exporters.Options{Registerer: cfg.Registerer})
	if err != nil {
		return nil, err
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

func (o *observer) Tracer() trace.Tracer { return o.tp.Tracer(o.name) }

func (o *observer) Meter() metric.Meter { return o.mp.Meter(o.name) }

func (o *observer) Logger() Logger { return o.logger }

func (o *observer) TracerProvider() trace.TracerProvider { return o.tp }

func (o *observer) MeterProvider() metric.MeterProvider { return o.mp }

func (o *observer) Shutdown(ctx context.Context) error {
	o.once.Do(func() {
		errs := make([]error, 0, len(o.flush))
		for _, fn := range o.flush {
			errs = append(errs, fn(ctx))
		}
		o.shutdownErr = errors.Join(errs...)
	})
	return o.shutdownErr
}
