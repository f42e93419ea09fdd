package apikey

import (
	"context"
	"database/sql"
	"errors"
	"time"

	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

// PostgresStore reads API client keys from the api_client_keys table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) FindByKey(ctx context.Context, key id.APIKeyID) (*Client, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, name, scope, active, last_used_at, created_at
		FROM api_client_keys
		WHERE key = $1`, string(key))

	var (
		c        Client
		rawKey   string
		scope    string
		lastUsed sql.NullTime
	)
	err := row.Scan(&rawKey, &c.Name, &scope, &c.Active, &lastUsed, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "query api key")
	}
	c.Key = id.APIKeyID(rawKey)
	c.Scope = Scope(scope)
	if lastUsed.Valid {
		t := lastUsed.Time
		c.LastUsedAt = &t
	}
	return &c, nil
}

func (s *PostgresStore) TouchLastUsed(ctx context.Context, key id.APIKeyID, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_client_keys SET last_used_at = $2 WHERE key = $1`,
		string(key), at)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "touch api key")
	}
	return nil
}
