package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Operation describes one regrid call for telemetry purposes.
type Operation struct {
	Backend string // backend that served the call, e.g. "precomputed"
	Method  string // interpolation method
	Input   string // input grid, in short form
	Output  string // output grid, in short form
}

// SpanName returns the deterministic span name for this operation.
// Format: regrid.<backend> or regrid
func (o Operation) SpanName() string {
	if o.Backend != "" {
		return "regrid." + o.Backend
	}
	return "regrid"
}

func (o Operation) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("regrid.method", o.Method),
	}
	if o.Backend != "" {
		attrs = append(attrs, attribute.String("regrid.backend", o.Backend))
	}
	if o.Input != "" {
		attrs = append(attrs, attribute.String("regrid.input", o.Input))
	}
	if o.Output != "" {
		attrs = append(attrs, attribute.String("regrid.output", o.Output))
	}
	return attrs
}

func (o Operation) fields() []Field {
	return []Field{
		F("backend", o.Backend),
		F("method", o.Method),
		F("input", o.Input),
		F("output", o.Output),
	}
}

// Tracer wraps OpenTelemetry tracing with regrid span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a regrid call.
	StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, op Operation) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(op.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
