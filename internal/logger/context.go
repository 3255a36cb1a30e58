package logger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// NewTrace tags ctx with a fresh trace id unless it already carries one.
func NewTrace(ctx context.Context) context.Context {
	if TraceIDFrom(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, uuid.NewString())
}

func TraceIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// FromCtx returns logger with trace_id automatically added
func FromCtx(ctx context.Context) *zap.Logger {
	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		return L()
	}
	return L().With(zap.String("trace_id", traceID))
}
