package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore is a KeyValueStore backed by a single table in
// Postgres, selected by the "postgres" persistence.kind config option.
// It stores each entity's serialized state as an opaque blob column —
// this package does not need to know the entity's schema, only that it
// round-trips through JSON.
type PostgresStore struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS entity_state (
	kind TEXT NOT NULL,
	id   BIGINT NOT NULL,
	blob BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (kind, id)
)`

// NewPostgresStore opens dsn, verifies connectivity, and ensures the
// backing table exists. Fails fast per spec.md §7's Fatal-at-startup
// class for misconfigured persistence.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: ensure schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Get(ctx context.Context, kind string, id uint64) ([]byte, error) {
	var blob []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT blob FROM entity_state WHERE kind = $1 AND id = $2`, kind, id,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

func (p *PostgresStore) Set(ctx context.Context, kind string, id uint64, blob []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO entity_state (kind, id, blob, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (kind, id) DO UPDATE SET blob = EXCLUDED.blob, updated_at = now()
	`, kind, id, blob)
	return err
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
