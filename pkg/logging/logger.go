// Package logging provides structured logging for penf-coref.
// It wraps zerolog behind a small interface so the resolver, the batch pool and the
// CLI log the same way: JSON lines for machines, zerolog's console writer for people.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ContextKey type for context values to avoid collisions.
type ContextKey string

// Context keys carried into log entries by WithContext.
const (
	RunIDKey      ContextKey = "run_id"
	DocumentIDKey ContextKey = "document_id"
)

// Level represents logging severity levels.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel converts a user-supplied string into a Level. Unknown values map to info.
func ParseLevel(s string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "warning":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Config holds logger configuration.
type Config struct {
	// Level sets the minimum log level (debug, info, warn, error).
	Level Level

	// ServiceName is included in all log entries.
	ServiceName string

	// Environment is included in all log entries.
	Environment string

	// JSONFormat enables JSON output when true, console output when false.
	JSONFormat bool

	// NoColor disables ANSI colours in console output.
	NoColor bool

	// Output sets the writer for logs (defaults to os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a Config for interactive use.
func DefaultConfig() *Config {
	return &Config{
		Level:       LevelInfo,
		ServiceName: "penf-coref",
		Environment: "development",
		Output:      os.Stderr,
	}
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a Logger with the given fields attached to every entry.
	With(fields ...Field) Logger

	// WithContext returns a Logger carrying run, document and trace identifiers
	// found in ctx.
	WithContext(ctx context.Context) Logger

	// Zerolog exposes the underlying logger.
	Zerolog() zerolog.Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new Field with the given key and value.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err creates a Field for an error.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

type logger struct {
	zl zerolog.Logger
}

// NewLogger creates a new Logger with the given configuration.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSONFormat {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
	}

	zl := zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service_name", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Logger()

	return &logger{zl: zl}
}

func (l *logger) Zerolog() zerolog.Logger {
	return l.zl
}

func parseLevel(l Level) zerolog.Level {
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

func (l *logger) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }
func (l *logger) Info(msg string, fields ...Field)  { emit(l.zl.Info(), msg, fields) }
func (l *logger) Warn(msg string, fields ...Field)  { emit(l.zl.Warn(), msg, fields) }
func (l *logger) Error(msg string, fields ...Field) { emit(l.zl.Error(), msg, fields) }

func (l *logger) With(fields ...Field) Logger {
	zctx := l.zl.With()
	for _, f := range fields {
		zctx = withField(zctx, f)
	}
	return &logger{zl: zctx.Logger()}
}

// WithContext attaches run_id and document_id values from ctx, plus the trace and
// span IDs of an active OpenTelemetry span.
func (l *logger) WithContext(ctx context.Context) Logger {
	zctx := l.zl.With()

	for _, key := range []ContextKey{RunIDKey, DocumentIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			zctx = zctx.Str(string(key), v)
		}
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		zctx = zctx.
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}

	return &logger{zl: zctx.Logger()}
}

// emit writes fields onto a zerolog event and sends it. A nil event means the
// level is disabled.
func emit(event *zerolog.Event, msg string, fields []Field) {
	if event == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			event.Str(f.Key, v)
		case int:
			event.Int(f.Key, v)
		case int64:
			event.Int64(f.Key, v)
		case float64:
			event.Float64(f.Key, v)
		case bool:
			event.Bool(f.Key, v)
		case error:
			event.AnErr(f.Key, v)
		case time.Duration:
			event.Dur(f.Key, v)
		case time.Time:
			event.Time(f.Key, v)
		case []string:
			event.Strs(f.Key, v)
		default:
			event.Interface(f.Key, v)
		}
	}
	event.Msg(msg)
}

func withField(zctx zerolog.Context, f Field) zerolog.Context {
	switch v := f.Value.(type) {
	case string:
		return zctx.Str(f.Key, v)
	case int:
		return zctx.Int(f.Key, v)
	case int64:
		return zctx.Int64(f.Key, v)
	case float64:
		return zctx.Float64(f.Key, v)
	case bool:
		return zctx.Bool(f.Key, v)
	case error:
		return zctx.AnErr(f.Key, v)
	case time.Duration:
		return zctx.Dur(f.Key, v)
	default:
		return zctx.Interface(f.Key, v)
	}
}

// WithRunID returns a context whose loggers will carry run_id.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithDocumentID returns a context whose loggers will carry document_id.
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	return context.WithValue(ctx, DocumentIDKey, documentID)
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string, fields ...Field)      {}
func (n *nopLogger) Info(msg string, fields ...Field)       {}
func (n *nopLogger) Warn(msg string, fields ...Field)       {}
func (n *nopLogger) Error(msg string, fields ...Field)      {}
func (n *nopLogger) With(fields ...Field) Logger            { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger { return n }
func (n *nopLogger) Zerolog() zerolog.Logger                { return zerolog.Nop() }

// NewNopLogger returns a logger that discards all output.
func NewNopLogger() Logger {
	return &nopLogger{}
}
