package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestMiddleware(t *testing.T, logOut *bytes.Buffer) (*Middleware, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	return NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("debug", logOut)), recorder, reader
}

func TestInstrument_Success(t *testing.T) {
	var logs bytes.Buffer
	mw, recorder, reader := newTestMiddleware(t, &logs)

	fn := Instrument(mw, func(ctx context.Context, op Operation, in []float64) ([]float64, error) {
		return []float64{in[0] * 2}, nil
	})

	op := Operation{Backend: "precomputed", Method: "linear", Input: "[5, 5]", Output: "[10, 10]"}
	out, err := fn(context.Background(), op, []float64{21})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0] != 42 {
		t.Errorf("result = %v, want [42]", out)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "regrid.precomputed" {
		t.Errorf("span name = %q, want regrid.precomputed", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}

	got := collect(t, reader)
	if v := sumValue(t, got["regrid.exec.total"]); v != 1 {
		t.Errorf("regrid.exec.total = %d, want 1", v)
	}
	if _, ok := got["regrid.exec.errors"]; ok {
		if v := sumValue(t, got["regrid.exec.errors"]); v != 0 {
			t.Errorf("regrid.exec.errors = %d, want 0", v)
		}
	}
	if !bytes.Contains(logs.Bytes(), []byte("regrid completed")) {
		t.Errorf("expected completion log, got %s", logs.String())
	}
}

func TestInstrument_Error(t *testing.T) {
	var logs bytes.Buffer
	mw, recorder, reader := newTestMiddleware(t, &logs)

	want := errors.New("matrix not found")
	fn := Instrument(mw, func(ctx context.Context, op Operation, in int) (int, error) {
		return 0, want
	})

	_, err := fn(context.Background(), Operation{Method: "nearest-neighbour"}, 1)
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "regrid" {
		t.Fatalf("unexpected spans: %v", spans)
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status().Code)
	}

	got := collect(t, reader)
	if v := sumValue(t, got["regrid.exec.errors"]); v != 1 {
		t.Errorf("regrid.exec.errors = %d, want 1", v)
	}
	if !bytes.Contains(logs.Bytes(), []byte("matrix not found")) {
		t.Errorf("expected error in log, got %s", logs.String())
	}
}

func TestNewMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	fn := Instrument(mw, func(ctx context.Context, op Operation, in string) (string, error) {
		return in, nil
	})
	if out, err := fn(context.Background(), Operation{}, "ok"); err != nil || out != "ok" {
		t.Errorf("fn() = %q, %v", out, err)
	}
}
