package core

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDKey is a custom context key type for storing the request ID in context.
type RequestIDKey struct{}

// IdentityKey is a custom context key type for storing the verified caller identity.
type IdentityKey struct{}

// BaseURLKey is a custom context key type for storing the public origin of the request.
type BaseURLKey struct{}

// Identity is the verified caller behind a bearer token.
type Identity struct {
	UserID   string
	ClientID string
	Scope    string
	Claims   map[string]any
}

// WithRequestID returns a new context with a generated request ID set.
func WithRequestID(ctx context.Context) context.Context {
	reqID := uuid.New().String()
	return context.WithValue(ctx, RequestIDKey{}, reqID)
}

// WithIdentity returns a new context carrying the verified identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, IdentityKey{}, id)
}

// IdentityFromContext retrieves the verified identity from the context.
// Returns false if the request was never authenticated.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(IdentityKey{}).(*Identity)
	return id, ok && id != nil
}

// IdentityFromRequest copies the identity stored on the request context, if any.
func IdentityFromRequest(ctx context.Context, r *http.Request) context.Context {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return WithIdentity(ctx, id)
	}
	return ctx
}

// WithBaseURL returns a new context with the public origin (scheme://host) set.
func WithBaseURL(ctx context.Context, baseURL string) context.Context {
	return context.WithValue(ctx, BaseURLKey{}, baseURL)
}

// BaseURLFromContext returns the public origin stored in the context, or "".
func BaseURLFromContext(ctx context.Context) string {
	u, _ := ctx.Value(BaseURLKey{}).(string)
	return u
}

// LoggerFromCtx returns a slog.Logger with request_id field if present in context.
// If no request ID is found, it returns the default logger.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID, _ := ctx.Value(RequestIDKey{}).(string); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	if id, ok := IdentityFromContext(ctx); ok {
		logger = logger.With("user_id", id.UserID)
	}
	return logger
}
