// Package exporters creates OpenTelemetry span exporters and metric readers
// by name.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Errors returned by the factories.
var (
	// ErrEndpointNotConfigured indicates the OTLP endpoint variable is unset.
	ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")

	// ErrUnknownExporter indicates an unsupported exporter name.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")
)

// Options tunes exporter construction.
type Options struct {
	// Writer receives stdout exporter output. Default: os.Stdout.
	Writer io.Writer

	// Registerer receives the prometheus collector. Default: the global
	// prometheus registerer.
	Registerer promclient.Registerer
}

func (o Options) writer() io.Writer {
	if o.Writer != nil {
		return o.Writer
	}
	return os.Stdout
}

// otlpEndpoint returns the first configured OTLP endpoint variable.
func otlpEndpoint(signal string) (string, error) {
	for _, name := range []string{"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_" + signal + "_ENDPOINT"} {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_%s_ENDPOINT", ErrEndpointNotConfigured, signal)
}

// NewSpanExporter creates a span exporter: stdout, otlp or none.
// "none" returns a nil exporter.
func NewSpanExporter(ctx context.Context, name string, opts Options) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(opts.writer()))

	case "otlp":
		if _, err := otlpEndpoint("TRACES"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)

	case "none", "":
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}

// NewMetricReader creates a metric reader: stdout, otlp, prometheus or
// none. "none" returns a nil reader.
func NewMetricReader(ctx context.Context, name string, opts Options) (sdkmetric.Reader, error) {
	switch name {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.writer()))
		if err != nil {
			return nil, fmt.Errorf("exporters: stdout metrics: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "otlp":
		if _, err := otlpEndpoint("METRICS"); err != nil {
			return nil, err
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("exporters: otlp metrics: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "prometheus":
		var popts []prometheus.Option
		if opts.Registerer != nil {
			popts = append(popts, prometheus.WithRegisterer(opts.Registerer))
		}
		exp, err := prometheus.New(popts...)
		if err != nil {
			return nil, fmt.Errorf("exporters: prometheus: %w", err)
		}
		return exp, nil

	case "none", "":
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}
