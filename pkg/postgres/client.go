// Package postgres opens the pooled database connection behind the
// postgres object store backend.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/tessera-search/tessera/pkg/config"
)

// Client holds the connection pool. DB is exported for the object store's
// statements; there is no query layer here.
type Client struct {
	DB *sql.DB
}

// New opens the pool per config and verifies it with a bounded ping.
func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db}, nil
}

// Ping checks database reachability, used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close drains the connection pool.
func (c *Client) Close() error {
	return c.DB.Close()
}
