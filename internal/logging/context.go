package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	traceIDKey
	spanIDKey
)

// WithLogger stores logger on ctx. A nil logger leaves ctx unchanged.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the request-scoped logger or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey)
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return withString(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, traceIDKey)
}

func WithSpanID(ctx context.Context, spanID string) context.Context {
	return withString(ctx, spanIDKey, spanID)
}

func SpanIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, spanIDKey)
}

// withString ignores empty values so a blank id never masks an inherited one.
func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil || value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
