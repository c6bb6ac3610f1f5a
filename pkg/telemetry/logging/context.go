package logging

import (
	"context"
)

type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// PrimitiveKey is the context key for the host primitive handling a request.
	PrimitiveKey contextKey = "primitive"

	// EnvKey is the context key for the resolved environment.
	EnvKey contextKey = "env"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithPrimitive records which host primitive ("request", "upload",
// "download", "http") is handling the request.
func WithPrimitive(ctx context.Context, primitive string) context.Context {
	return context.WithValue(ctx, PrimitiveKey, primitive)
}

// GetPrimitive retrieves the primitive from the context.
func GetPrimitive(ctx context.Context) string {
	if p, ok := ctx.Value(PrimitiveKey).(string); ok {
		return p
	}
	return ""
}

// WithEnv adds the resolved environment name to the context.
func WithEnv(ctx context.Context, env string) context.Context {
	return context.WithValue(ctx, EnvKey, env)
}

// GetEnv retrieves the environment name from the context.
func GetEnv(ctx context.Context) string {
	if env, ok := ctx.Value(EnvKey).(string); ok {
		return env
	}
	return ""
}

// extractContextFields returns key/value pairs for the fields set on ctx.
func extractContextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	var fields []any
	if v := GetRequestID(ctx); v != "" {
		fields = append(fields, string(RequestIDKey), v)
	}
	if v := GetPrimitive(ctx); v != "" {
		fields = append(fields, string(PrimitiveKey), v)
	}
	if v := GetEnv(ctx); v != "" {
		fields = append(fields, string(EnvKey), v)
	}
	return fields
}
