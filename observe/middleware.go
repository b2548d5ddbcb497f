package observe

import (
	"context"
	"time"
)

// Func is the signature of an instrumented regrid call.
type Func[Req, Resp any] func(ctx context.Context, op Operation, req Req) (Resp, error)

// Middleware wraps regrid calls with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: wrapped functions are safe for concurrent use if the inner one is.
//   - Context: the span context is passed to the inner function.
//   - Errors: errors from the inner function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced with
// no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewTracer(nil)
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// MiddlewareFromObserver builds a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Instrument wraps fn with m.
func Instrument[Req, Resp any](m *Middleware, fn Func[Req, Resp]) Func[Req, Resp] {
	return func(ctx context.Context, op Operation, req Req) (Resp, error) {
		ctx, span := m.tracer.StartSpan(ctx, op)
		start := time.Now()

		resp, err := fn(ctx, op, req)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordRegrid(ctx, op, duration, err)

		fields := append(op.fields(), F("duration_ms", float64(duration.Microseconds())/1000))
		if err != nil {
			fields = append(fields, F("error", err))
			m.logger.Error(ctx, "regrid failed", fields...)
		} else {
			m.logger.Debug(ctx, "regrid completed", fields...)
		}
		return resp, err
	}
}
