package observe

import (
	"context"
	"io"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents a logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a string log level. Unknown levels map to info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// String returns the level name.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// zeroLogger adapts a zerolog.Logger to Logger.
type zeroLogger struct {
	zl zerolog.Logger
}

// NewLogger creates a JSON logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a JSON logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return NewLoggerWithConfig(LoggingConfig{Enabled: true, Level: level, Output: w})
}

// NewLoggerWithConfig creates a logger from a LoggingConfig. The console
// format is meant for interactive use.
func NewLoggerWithConfig(cfg LoggingConfig) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).
		Level(ParseLogLevel(cfg.Level).zerolog()).
		With().
		Timestamp().
		Logger()
	return &zeroLogger{zl: zl}
}

func (l *zeroLogger) With(fields ...Field) Logger {
	c := l.zl.With()
	for _, f := range fields {
		c = c.Interface(f.Key, redact(f))
	}
	return &zeroLogger{zl: c.Logger()}
}

func (l *zeroLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, l.zl.Info(), msg, fields)
}

func (l *zeroLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, l.zl.Warn(), msg, fields)
}

func (l *zeroLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, l.zl.Error(), msg, fields)
}

func (l *zeroLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, l.zl.Debug(), msg, fields)
}

func (l *zeroLogger) log(ctx context.Context, ev *zerolog.Event, msg string, fields []Field) {
	// Disabled levels return a nil event.
	if ev == nil {
		return
	}
	if ctx != nil {
		ev = ev.Ctx(ctx)
	}
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			ev = ev.AnErr(f.Key, err)
			continue
		}
		ev = ev.Interface(f.Key, redact(f))
	}
	ev.Msg(msg)
}

func redact(f Field) any {
	if slices.Contains(RedactedFields, f.Key) {
		return "[REDACTED]"
	}
	return f.Value
}

type nopLogger struct{}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Info(context.Context, string, ...Field)  {}
func (nopLogger) Warn(context.Context, string, ...Field)  {}
func (nopLogger) Error(context.Context, string, ...Field) {}
func (nopLogger) Debug(context.Context, string, ...Field) {}
func (l nopLogger) With(...Field) Logger                  { return l }

var (
	_ Logger = (*zeroLogger)(nil)
	_ Logger = nopLogger{}
)
