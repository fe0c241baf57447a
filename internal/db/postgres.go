// Package db builds the PostgreSQL and Redis handles shared by the feed
// service's stores, the change-event publisher and every feed subscription.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// Feed queries are one-shot: a viewer borrows a connection at connect
	// time and on each resync, never for the lifetime of its SSE stream, so
	// a modest cap covers hundreds of concurrent viewers plus the listing
	// and suggestion write paths.
	pgMaxConns = 16
	pgMinConns = 2

	// A connect that takes longer than this means the database is down, not
	// warming up; fail the caller instead of queueing behind it.
	pgConnectTimeout = 5 * time.Second

	pgMaxConnIdleTime = 5 * time.Minute
)

// NewPostgresPool creates and verifies the pgx connection pool used by the
// listing and suggestion stores.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	cfg.MaxConns = pgMaxConns
	cfg.MinConns = pgMinConns
	cfg.MaxConnIdleTime = pgMaxConnIdleTime
	cfg.ConnConfig.ConnectTimeout = pgConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}
