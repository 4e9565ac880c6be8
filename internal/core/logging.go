// Licensed under the MIT License. See LICENSE file in the project root for details.

package core

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with catalog-specific helpers. It is the logging
// sink for the library: leveled messages with consistent field names, never
// failing the caller and never affecting correctness.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger over the given handler. A nil handler means
// human-readable text output to stderr at Info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// LogAdd logs one add operation and its outcome.
func (l *Logger) LogAdd(ctx context.Context, id int, name, author string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed", "id", id, "error", err)
		return
	}
	l.InfoContext(ctx, "book added", "id", id, "name", name, "author", author)
}

// LogUpdate logs one status update and its outcome.
func (l *Logger) LogUpdate(ctx context.Context, id int, to Status, mode ReclaimMode, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed", "id", id, "status", to.String(), "error", err)
		return
	}
	l.InfoContext(ctx, "book updated", "id", id, "to", to.String(), "mode", mode.String())
}

// LogDelete logs one delete operation and its outcome.
func (l *Logger) LogDelete(ctx context.Context, id int, mode ReclaimMode, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed", "id", id, "error", err)
		return
	}
	l.InfoContext(ctx, "book deleted", "id", id, "mode", mode.String())
}

// LogReclaim logs one reclaimed node at debug level.
func (l *Logger) LogReclaim(id int) {
	l.Debug("node reclaimed", "id", id)
}
