package restkit

import (
	"context"
)

// Context keys for RestKit values.
type contextKey string

const (
	contextKeyActor     contextKey = "restkit:actor"
	contextKeyRequestID contextKey = "restkit:request_id"
)

// WithActor adds the resolved caller to the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextKeyActor, actor)
}

// ActorFrom retrieves the caller from context.
// Returns Anonymous if none was resolved.
func ActorFrom(ctx context.Context) Actor {
	if v := ctx.Value(contextKeyActor); v != nil {
		if a, ok := v.(Actor); ok {
			return a
		}
	}
	return Anonymous
}

// WithRequestID adds a request ID to the context for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFrom retrieves the request ID from context.
// Returns empty string if not set.
func RequestIDFrom(ctx context.Context) string {
	if v := ctx.Value(contextKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
