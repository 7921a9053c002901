// Package observability provides logging, metrics, and tracing.
package observability

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// NewLogger returns a logger writing JSON to the given level on stdout.
func NewLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// SyncCanonicalLine emits the single structured summary line for a profile
// fan-out: status, user id, conversation count, and the first error if any.
func (l *Logger) SyncCanonicalLine(status, userID string, conversationCount int, err error) {
	attrs := []any{
		slog.String("op", "sync_participant_summaries"),
		slog.String("status", status),
		slog.String("user_id", userID),
		slog.Int("conversation_count", conversationCount),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.Info("canonical-log-line", attrs...)
}
