package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. All values come from the
// environment so main stays lean; defaults suit local development.
type Config struct {
	Addr string

	// DatabaseURL selects the Postgres store. Empty means run on the
	// in-memory store (dev/test only).
	DatabaseURL string

	// RedisURL enables the badge-resolution cache. Empty disables caching;
	// taps then read bindings straight from the store.
	RedisURL string

	// BadgeCacheTTL bounds staleness of cached badge→person entries.
	BadgeCacheTTL time.Duration

	// SessionListLimit caps per-student session listings.
	SessionListLimit int

	// DevAPIKey seeds a write-scoped API key when running on the in-memory
	// store, where no api_client_keys table exists. Ignored with Postgres.
	DevAPIKey string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:             getenv("ROLLCALL_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("ROLLCALL_DATABASE_URL"),
		RedisURL:         os.Getenv("ROLLCALL_REDIS_URL"),
		BadgeCacheTTL:    5 * time.Minute,
		SessionListLimit: 200,
		DevAPIKey:        os.Getenv("ROLLCALL_DEV_API_KEY"),
	}

	if raw := os.Getenv("ROLLCALL_BADGE_CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.BadgeCacheTTL = d
		}
	}
	if raw := os.Getenv("ROLLCALL_SESSION_LIST_LIMIT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.SessionListLimit = n
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
