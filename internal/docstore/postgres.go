package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/tessera-search/tessera/pkg/errors"
	"github.com/tessera-search/tessera/pkg/postgres"
)

// PostgresStore is an ObjectStore backed by a PostgreSQL table keyed by
// (bucket, key).
type PostgresStore struct {
	db *postgres.Client
}

// NewPostgresStore wraps the given client. Call EnsureSchema before first
// use on a fresh database.
func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the backing table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tessera_objects (
			bucket     TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (bucket, key)
		)`)
	if err != nil {
		return fmt.Errorf("creating objects table: %w", err)
	}
	return nil
}

// Get returns the stored object.
func (s *PostgresStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	var value []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT value FROM tessera_objects WHERE bucket = $1 AND key = $2`,
		bucket, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: object %s/%s", apperrors.ErrNotFound, bucket, key)
	}
	if err != nil {
		return nil, fmt.Errorf("getting object %s/%s: %w", bucket, key, err)
	}
	return value, nil
}

// Put upserts the object, last writer winning.
func (s *PostgresStore) Put(ctx context.Context, bucket, key string, value []byte) error {
	_, err := s.db.DB.ExecContext(ctx, `
		INSERT INTO tessera_objects (bucket, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (bucket, key) DO UPDATE SET value = $3, updated_at = NOW()`,
		bucket, key, value,
	)
	if err != nil {
		return fmt.Errorf("putting object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (s *PostgresStore) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM tessera_objects WHERE bucket = $1 AND key = $2`,
		bucket, key,
	)
	if err != nil {
		return fmt.Errorf("deleting object %s/%s: %w", bucket, key, err)
	}
	return nil
}
