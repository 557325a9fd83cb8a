package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type requestContextKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestContextKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	requestID, ok := ctx.Value(requestContextKey{}).(string)
	return requestID, ok && requestID != ""
}

func NewRequestID() string {
	return uuid.NewString()
}

// EnsureRequestID attaches a fresh request id unless the context already
// carries one.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if existing, ok := RequestIDFromContext(ctx); ok {
		return ctx, existing
	}
	requestID := NewRequestID()
	return WithRequestID(ctx, requestID), requestID
}

func LoggerWithRequest(ctx context.Context, base *zap.Logger) *zap.Logger {
	logger := base
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestID, ok := RequestIDFromContext(ctx); ok {
		return logger.With(RequestIDField(requestID))
	}
	return logger
}
