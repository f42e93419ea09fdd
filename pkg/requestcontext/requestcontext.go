// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services and handlers read
// them without importing net/http.
package requestcontext

import (
	"context"

	id "rollcall/pkg/domain"
)

type (
	requestIDKey   struct{}
	clientKeyKey   struct{}
	clientScopeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyClientKey   = clientKeyKey{}
	ContextKeyClientScope = clientScopeKey{}
)

// RequestID retrieves the request ID, or "" when unset.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// ClientKey retrieves the authenticated API client key, or "" when the
// request is unauthenticated.
func ClientKey(ctx context.Context) id.APIKeyID {
	if v, ok := ctx.Value(ContextKeyClientKey).(id.APIKeyID); ok {
		return v
	}
	return ""
}

// WithClientKey injects the authenticated API client key.
func WithClientKey(ctx context.Context, key id.APIKeyID) context.Context {
	return context.WithValue(ctx, ContextKeyClientKey, key)
}

// ClientScope retrieves the authenticated client's scope, or "" when unset.
func ClientScope(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyClientScope).(string); ok {
		return v
	}
	return ""
}

// WithClientScope injects the authenticated client's scope.
func WithClientScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, ContextKeyClientScope, scope)
}
