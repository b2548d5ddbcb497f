package regrid

import (
	"bytes"
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/regrid/config"
	"github.com/jonwraymond/regrid/observe"
)

func counter(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T, want Sum[int64]", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestRegridder_Instrumented(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	var logs bytes.Buffer
	mw := observe.NewMiddleware(observe.NewTracer(tp.Tracer("test")), metrics, observe.NewLoggerWithWriter("debug", &logs))

	r := NewRegridder(NewPrecomputed(newTestDB(t)), mw)
	ctx := context.Background()

	if _, err := r.Regrid(ctx, Request{Values: field(), Input: grid5, Output: grid10}); err != nil {
		t.Fatalf("Regrid() error = %v", err)
	}
	if _, err := r.Regrid(ctx, Request{Values: field(), Input: grid10, Output: grid5}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Regrid() error = %v, want ErrNotFound", err)
	}

	if n := counter(t, reader, "regrid.exec.total"); n != 2 {
		t.Errorf("regrid.exec.total = %d, want 2", n)
	}
	if n := counter(t, reader, "regrid.exec.errors"); n != 1 {
		t.Errorf("regrid.exec.errors = %d, want 1", n)
	}
	ended := spans.Ended()
	if len(ended) != 2 || ended[0].Name() != "regrid.precomputed" {
		t.Fatalf("spans = %d, first %q", len(ended), ended[0].Name())
	}
	if !bytes.Contains(logs.Bytes(), []byte("regrid failed")) {
		t.Errorf("expected failure log, got %s", logs.String())
	}
}

func newTestStore(t *testing.T, values map[string]any) *config.Store {
	t.Helper()
	cfg := config.Defaults()
	cfg.MatrixSource = writeRepo(t)
	store, err := config.NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if len(values) > 0 {
		if err := store.SetMany(values); err != nil {
			t.Fatalf("SetMany() error = %v", err)
		}
	}
	return store
}

func TestNewService(t *testing.T) {
	svc, err := NewService(newTestStore(t, nil))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	if !svc.DB.Accessor().IsLocal() {
		t.Error("accessor is not local")
	}
	if _, ok := svc.Backend().(*Precomputed); !ok {
		t.Errorf("Backend() = %T, want *Precomputed", svc.Backend())
	}
	res, err := svc.Regrid(context.Background(), Request{Values: field(), Input: grid5, Output: grid10})
	if err != nil {
		t.Fatalf("Regrid() error = %v", err)
	}
	if len(res.Values.Shape) != 2 || res.Values.Shape[0] != outRows || res.Values.Shape[1] != outCols {
		t.Errorf("shape = %v", res.Values.Shape)
	}

	if err := svc.Store.Set(config.KeyCacheSize, "1KB"); err != nil {
		t.Fatal(err)
	}
	if info := svc.DB.Cache().Info(); info.MaxSize != 1000 || info.Count != 0 {
		t.Errorf("Info() = %+v after shrinking the budget", info)
	}
}

func TestNewService_Backends(t *testing.T) {
	store := newTestStore(t, map[string]any{config.KeyBackendOrder: []string{"engine", "precomputed"}})

	if _, err := NewService(store); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("NewService() without engine error = %v, want ErrUnknownBackend", err)
	}

	engine := engineFunc(func([]float64, map[string]any, map[string]any, string) ([]float64, []int, error) {
		return nil, nil, ErrNotFound
	})
	svc, err := NewService(store, WithEngine(engine))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	chain, ok := svc.Backend().(*Chain)
	if !ok || len(chain.Backends()) != 2 {
		t.Fatalf("Backend() = %T", svc.Backend())
	}
	if _, err := svc.Regrid(context.Background(), Request{Values: field(), Input: grid5, Output: grid10}); err != nil {
		t.Fatalf("Regrid() through chain error = %v", err)
	}
}
