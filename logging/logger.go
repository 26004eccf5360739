package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is a structured logger for blockvault. It wraps slog.Logger
// with convenience methods for common logging patterns.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the given handler.
func New(handler slog.Handler) *Logger {
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a new Logger with text output format.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: false,
	}
	return New(slog.NewTextHandler(w, opts))
}

// NewJSONLogger creates a new Logger with JSON output format.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: false,
	}
	return New(slog.NewJSONHandler(w, opts))
}

// NewDevelopmentLogger creates a logger suitable for development. Uses
// text format with debug level output to stderr.
func NewDevelopmentLogger() *Logger {
	return NewTextLogger(os.Stderr, slog.LevelDebug)
}

// NewProductionLogger creates a logger suitable for production. Uses
// JSON format with info level output to stdout.
func NewProductionLogger() *Logger {
	return NewJSONLogger(os.Stdout, slog.LevelInfo)
}

// NewNopLogger creates a logger that discards all output.
func NewNopLogger() *Logger {
	return New(nopHandler{})
}

// With returns a new Logger with the given attributes added to every log entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// WithComponent returns a new Logger with a component attribute.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithPayloadType returns a new Logger with a payload type attribute.
func (l *Logger) WithPayloadType(t string) *Logger {
	return l.With(PayloadType(t))
}

// Attribute constructors for blockstore-specific fields.

// Component creates a component attribute for identifying the source module.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// PayloadType creates a payload type attribute ("block", "undo", "merkle").
func PayloadType(t string) slog.Attr {
	return slog.String("payload_type", t)
}

// Key creates a content-hash key attribute (hex-encoded).
func Key(hex string) slog.Attr {
	return slog.String("key", hex)
}

// Segment creates a segment number attribute.
func Segment(n uint32) slog.Attr {
	return slog.Uint64("segment", uint64(n))
}

// Backend creates a store backend attribute.
func Backend(name string) slog.Attr {
	return slog.String("backend", name)
}

// Duration creates a duration attribute in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64("duration_ms", float64(d.Nanoseconds())/1e6)
}

// Size creates a size attribute in bytes.
func Size(n int) slog.Attr {
	return slog.Int("size_bytes", n)
}

// Count creates a count attribute.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Path creates a filesystem path attribute.
func Path(p string) slog.Attr {
	return slog.String("path", p)
}

// nopHandler is a slog.Handler that discards all logs.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
