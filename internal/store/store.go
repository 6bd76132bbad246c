// Package store is the durable (L3) adapter: row-level CRUD over the lists,
// items and members tables with soft deletes. The cache tiers are
// authoritative for reads on the hot path; this layer is written to by the
// write-behind worker and read only on cold starts and permission checks.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store wraps a pgx connection pool.
type Store struct {
	log  *zap.Logger
	pool *pgxpool.Pool
}

// New connects the pool and verifies the database is reachable.
func New(ctx context.Context, log *zap.Logger, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	log = log.Named("store")
	log.Info("database pool initialized")
	return &Store{log: log, pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// parseTimestamp accepts the ISO strings the wire format carries and turns
// them into values the timestamptz columns take. Zero time on empty input.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
