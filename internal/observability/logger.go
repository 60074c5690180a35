// Package observability provides structured logging and metrics collection.
//
// Logger wraps log/slog with panel-specific context fields.
// Metrics collects dispatch counts, handler errors and latencies.
package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger wraps slog with persistent panel context.
type Logger struct {
	mu     sync.RWMutex
	inner  *slog.Logger
	panel  string
	fields []slog.Attr
}

// NewLogger creates a JSON logger for a given panel.
// Output defaults to os.Stderr if w is nil.
func NewLogger(panelName string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	return &Logger{
		inner: slog.New(handler),
		panel: panelName,
	}
}

// NewTextLogger creates a human-readable logger at the given level, used
// when output is a terminal.
func NewTextLogger(panelName string, w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return NewLoggerWithHandler(panelName, slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewLoggerWithHandler creates a logger with a custom slog handler.
func NewLoggerWithHandler(panelName string, h slog.Handler) *Logger {
	return &Logger{
		inner: slog.New(h),
		panel: panelName,
	}
}

// Discard returns a logger that drops everything. Used by tests and by
// components constructed without a logger.
func Discard() *Logger {
	return NewLoggerWithHandler("", slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional persistent fields.
func (l *Logger) With(key string, value any) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		inner:  l.inner.With(slog.Any(key, value)),
		panel:  l.panel,
		fields: append(l.fields, slog.Any(key, value)),
	}
}

// attrs prepends panel name to the arguments.
func (l *Logger) attrs(msg string, args []any) (string, []any) {
	return msg, append([]any{slog.String("panel", l.panel)}, args...)
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Debug(msg, args...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Info(msg, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Warn(msg, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	msg, args = l.attrs(msg, args)
	l.inner.Error(msg, args...)
}

// Dispatch logs one dispatched command.
func (l *Logger) Dispatch(port int, token string, args ...any) {
	allArgs := append([]any{
		slog.String("panel", l.panel),
		slog.Int("port", port),
		slog.String("command", token),
	}, args...)
	l.inner.Debug("dispatch", allArgs...)
}

// PopupEvent logs a popup state transition.
func (l *Logger) PopupEvent(event, popup string, args ...any) {
	allArgs := append([]any{
		slog.String("panel", l.panel),
		slog.String("event", event),
		slog.String("popup", popup),
	}, args...)
	l.inner.Debug("popup", allArgs...)
}

// TransportEvent logs a controller connection event.
func (l *Logger) TransportEvent(event, addr string, args ...any) {
	allArgs := append([]any{
		slog.String("panel", l.panel),
		slog.String("event", event),
		slog.String("addr", addr),
	}, args...)
	l.inner.Info("transport", allArgs...)
}

// PanelName returns the panel name associated with this logger.
func (l *Logger) PanelName() string {
	return l.panel
}
