package observe

import (
	"fmt"
	"io"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
)

// Config selects which telemetry signals an Observer produces.
type Config struct {
	ServiceName string
	Version     string
	Tracing     TracingConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool

	// Exporter is one of ValidTracingExporters. Empty means none.
	Exporter string

	// SamplePct is the fraction of root spans kept, in [0, 1].
	SamplePct float64
}

// MetricsConfig configures instrument export.
type MetricsConfig struct {
	Enabled bool

	// Exporter is one of ValidMetricsExporters. Empty means none.
	Exporter string

	// Registerer receives the prometheus collector.
	// Default: prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Enabled bool
	Level   string // debug|info|warn|error, default info
	Format  string // json|console, default json

	// Output receives log lines. Default: os.Stderr
	Output io.Writer
}

// Validate reports the first invalid setting. Disabled signals are not
// checked.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if t := c.Tracing; t.Enabled {
		if err := oneOf(ErrInvalidTracingExporter, t.Exporter, ValidTracingExporters); err != nil {
			return err
		}
		if t.SamplePct < 0 || t.SamplePct > 1 {
			return fmt.Errorf("%w: got %g", ErrInvalidSamplePct, t.SamplePct)
		}
	}
	if m := c.Metrics; m.Enabled {
		if err := oneOf(ErrInvalidMetricsExporter, m.Exporter, ValidMetricsExporters); err != nil {
			return err
		}
	}
	if l := c.Logging; l.Enabled {
		if err := oneOf(ErrInvalidLogLevel, l.Level, ValidLogLevels); err != nil {
			return err
		}
		if err := oneOf(ErrInvalidLogFormat, l.Format, ValidLogFormats); err != nil {
			return err
		}
	}
	return nil
}

func oneOf(sentinel error, value string, valid []string) error {
	if slices.Contains(valid, value) {
		return nil
	}
	return fmt.Errorf("%w: %q", sentinel, value)
}
