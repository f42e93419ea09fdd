// Package apikey authenticates API clients by opaque keys presented in the
// X-API-KEY header. Keys are minted out of band; this package only checks
// them and records use.
package apikey

import (
	"context"
	"time"

	id "rollcall/pkg/domain"
)

// Scope is the coarse permission level attached to a key.
type Scope string

const (
	// ScopeRead allows the reporting endpoints.
	ScopeRead Scope = "read"
	// ScopeWrite allows taps, imports, and badge administration, and
	// implies read.
	ScopeWrite Scope = "write"
)

// Allows reports whether a key with this scope may perform actions that
// require the given scope.
func (s Scope) Allows(required Scope) bool {
	if s == ScopeWrite {
		return true
	}
	return s == required
}

// Client is one registered API consumer.
type Client struct {
	Key        id.APIKeyID
	Name       string
	Scope      Scope
	Active     bool
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// Store persists API client keys.
type Store interface {
	// FindByKey returns the client for key, or nil when unknown.
	FindByKey(ctx context.Context, key id.APIKeyID) (*Client, error)

	// TouchLastUsed stamps the key's last use. Best effort; a failed stamp
	// must not fail the request.
	TouchLastUsed(ctx context.Context, key id.APIKeyID, at time.Time) error
}
