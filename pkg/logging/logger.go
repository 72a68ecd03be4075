package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type Logger struct {
	*slog.Logger
}

type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ContextKey for correlation IDs
type contextKey string

const correlationIDKey contextKey = "correlation_id"

func NewLogger(level LogLevel) *Logger {
	return New(level, os.Stdout)
}

// New builds a JSON logger writing to w.
func New(level LogLevel, w io.Writer) *Logger {
	var slogLevel slog.Level
	switch LogLevel(strings.ToLower(string(level))) {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn, "warning":
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel})
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context) context.Context {
	if GetCorrelationID(ctx) == "" {
		return ContextWithCorrelationID(ctx, uuid.New().String())
	}
	return ctx
}

// ContextWithCorrelationID stores a caller supplied correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

func withCorrelation(ctx context.Context, args []any) []any {
	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		args = append(args, "correlation_id", correlationID)
	}
	return args
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.Logger.DebugContext(ctx, msg, withCorrelation(ctx, args)...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.Logger.InfoContext(ctx, msg, withCorrelation(ctx, args)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.Logger.WarnContext(ctx, msg, withCorrelation(ctx, args)...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.Logger.ErrorContext(ctx, msg, withCorrelation(ctx, args)...)
}

// LogLinkOperation logs link operations without the destination URL. The
// acting subject, if any, is masked.
func (l *Logger) LogLinkOperation(ctx context.Context, operation, code, subject string, success bool) {
	args := []any{
		"operation", operation,
		"code", code,
		"success", success,
	}
	if subject != "" {
		args = append(args, "user_hash", hashSensitiveData(subject))
	}
	l.Info(ctx, "link operation", args...)
}

// LogURLValidation logs URL validation without the actual URL
func (l *Logger) LogURLValidation(ctx context.Context, valid bool, scheme string) {
	l.Debug(ctx, "url validation",
		"valid", valid,
		"scheme", scheme,
	)
}

// LogAuthEvent logs authentication events without sensitive data
func (l *Logger) LogAuthEvent(ctx context.Context, event string, userID string, success bool) {
	l.Info(ctx, "auth event",
		"event", event,
		"user_hash", hashSensitiveData(userID),
		"success", success,
	)
}

// Show first 3 and last 3 chars with stars in middle
func hashSensitiveData(data string) string {
	if len(data) < 8 {
		return "***"
	}
	return data[:3] + "***" + data[len(data)-3:]
}
