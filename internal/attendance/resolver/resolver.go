// Package resolver maps raw badge UIDs to known persons. Resolution is a
// pure read against the binding store, optionally fronted by a Redis cache
// for the kiosk hot path.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"rollcall/internal/attendance/store"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

const cacheKeyPrefix = "badge:uid:"

// Resolver resolves badge UIDs against active bindings. It never creates
// bindings.
type Resolver struct {
	bindings store.BindingStore
	cache    *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
	group    singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache fronts resolution with a Redis cache. TTL bounds staleness after
// a reassignment that bypassed Invalidate.
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cache = client
		r.ttl = ttl
	}
}

// WithLogger sets the logger for cache warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New constructs a Resolver over the given binding store.
func New(bindings store.BindingStore, opts ...Option) (*Resolver, error) {
	if bindings == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "binding store is required")
	}
	r := &Resolver{bindings: bindings}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the person bound to uid, or ok=false when no active
// binding exists. An empty uid short-circuits to no match.
func (r *Resolver) Resolve(ctx context.Context, uid string) (id.PersonID, bool, error) {
	if uid == "" {
		return id.PersonID{}, false, nil
	}

	if r.cache != nil {
		if personID, ok := r.cacheGet(ctx, uid); ok {
			return personID, true, nil
		}
	}

	// Collapse concurrent lookups of one uid (a stuck badge firing bursts)
	// into a single store read.
	v, err, _ := r.group.Do(uid, func() (any, error) {
		binding, err := r.bindings.FindActiveByUID(ctx, uid)
		if err != nil {
			return nil, err
		}
		if binding == nil {
			return nil, nil
		}
		if r.cache != nil {
			r.cacheSet(ctx, uid, binding.PersonID)
		}
		return binding.PersonID, nil
	})
	if err != nil {
		return id.PersonID{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "resolve badge uid")
	}
	if v == nil {
		return id.PersonID{}, false, nil
	}
	return v.(id.PersonID), true, nil
}

// Invalidate drops the cached entry for uid. Call after revoking or
// reassigning a binding.
func (r *Resolver) Invalidate(ctx context.Context, uid string) {
	if r.cache == nil || uid == "" {
		return
	}
	if err := r.cache.Del(ctx, cacheKeyPrefix+uid).Err(); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "badge cache invalidation failed", "uid", uid, "error", err)
	}
}

func (r *Resolver) cacheGet(ctx context.Context, uid string) (id.PersonID, bool) {
	raw, err := r.cache.Get(ctx, cacheKeyPrefix+uid).Result()
	if errors.Is(err, redis.Nil) {
		return id.PersonID{}, false
	}
	if err != nil {
		// Cache trouble must not fail taps; fall through to the store.
		if r.logger != nil {
			r.logger.WarnContext(ctx, "badge cache read failed", "uid", uid, "error", err)
		}
		return id.PersonID{}, false
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return id.PersonID{}, false
	}
	return id.PersonID(parsed), true
}

func (r *Resolver) cacheSet(ctx context.Context, uid string, personID id.PersonID) {
	if err := r.cache.Set(ctx, cacheKeyPrefix+uid, personID.String(), r.ttl).Err(); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "badge cache write failed", "uid", uid, "error", err)
	}
}
