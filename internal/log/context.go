package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the request-scoped logger, or one writing through the
// process default handler when none was stored.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// RequestStarted writes the access line for an incoming request.
func (l *Logger) RequestStarted(ctx context.Context, r *http.Request, clientIP string) {
	l.DebugContext(ctx, "HTTP request started",
		FieldMethod, r.Method,
		FieldPath, r.URL.Path,
		FieldQuery, r.URL.RawQuery,
		FieldUserAgent, r.UserAgent(),
		FieldClientIP, clientIP)
}

// RequestCompleted writes the access line for a finished request at a level
// following the status class.
func (l *Logger) RequestCompleted(ctx context.Context, r *http.Request, status int, elapsed time.Duration, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	l.log(ctx, level, "HTTP request completed", []any{
		FieldMethod, r.Method,
		FieldPath, r.URL.Path,
		FieldStatusCode, status,
		FieldDuration, elapsed.Milliseconds(),
		FieldClientIP, clientIP,
	})
}

// RecordChanged logs a stored mutation with the store version it produced.
func (l *Logger) RecordChanged(ctx context.Context, op string, id int64, field, user string, version int64) {
	args := []any{FieldOperation, op, FieldRecordID, id}
	if field != "" {
		args = append(args, FieldRecordField, field)
	}
	args = append(args, FieldUser, user, FieldVersion, version)
	l.InfoContext(ctx, "Record changed", args...)
}
