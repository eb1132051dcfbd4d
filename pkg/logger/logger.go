// Package logger provides context-aware structured logging on top of zap.
// A logger travels in the request context so scrape attempts can carry
// per-product fields without threading a logger through every call.
package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var defaultLogger = zap.NewNop()

// Setup initializes the default logger for the given environment.
// "production" selects the JSON production config; anything else gets the
// human-readable development config.
func Setup(environment string) {
	if environment == "production" {
		defaultLogger, _ = zap.NewProduction()
		return
	}
	defaultLogger, _ = zap.NewDevelopment()
}

type ctxKey struct{}

// Get returns the logger stored in ctx, or the default logger.
func Get(ctx context.Context) *zap.Logger {
	if l, _ := ctx.Value(ctxKey{}).(*zap.Logger); l != nil {
		return l
	}
	return defaultLogger
}

// WithFields returns a context whose logger carries the extra fields.
func WithFields(ctx context.Context, fields ...zapcore.Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, Get(ctx).With(fields...))
}

// Debug logs at debug level using the context logger.
func Debug(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Debug(msg, fields...)
}

// Info logs at info level using the context logger.
func Info(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Info(msg, fields...)
}

// Warn logs at warn level using the context logger.
func Warn(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Warn(msg, fields...)
}

// Error logs at error level using the context logger.
func Error(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Error(msg, fields...)
}
