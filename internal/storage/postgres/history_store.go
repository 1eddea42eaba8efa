// Package postgres provides the Postgres-backed observation history.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

const defaultTable = "member_observations"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// HistoryStoreConfig controls the Postgres connection pool used for observation rows.
type HistoryStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// HistoryStore writes one row per member and pass into Postgres.
type HistoryStore struct {
	pool  execCloser
	table string
}

// NewHistoryStore connects to Postgres and ensures the table exists.
func NewHistoryStore(ctx context.Context, cfg HistoryStoreConfig) (*HistoryStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := resolveTable(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &HistoryStore{pool: pool, table: table}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewHistoryStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewHistoryStoreWithPool(pool execCloser, table string) (*HistoryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	return &HistoryStore{pool: pool, table: table}, nil
}

func resolveTable(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the observation table and its lookup index.
func (s *HistoryStore) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	run_id      TEXT        NOT NULL,
	member_name TEXT        NOT NULL,
	status      TEXT        NOT NULL,
	last_seen   TIMESTAMPTZ,
	observed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, member_name)
);
CREATE INDEX IF NOT EXISTS %[1]s_member_idx ON %[1]s (member_name, observed_at DESC)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *HistoryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordObservations inserts the rows of one pass. Re-recording the same
// run is a no-op.
func (s *HistoryStore) RecordObservations(ctx context.Context, observations []tracker.Observation) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("history store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	member_name,
	status,
	last_seen,
	observed_at
) VALUES (
	$1,$2,$3,$4,$5
) ON CONFLICT (run_id, member_name) DO NOTHING`, s.table)

	for _, obs := range observations {
		if obs.RunID == "" || obs.Name == "" {
			return fmt.Errorf("observation requires run id and name")
		}
		args := []any{
			obs.RunID,
			obs.Name,
			string(obs.Status),
			lastSeenTime(obs.LastSeen),
			obs.ObservedAt.UTC(),
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert observation for %s: %w", obs.Name, err)
		}
	}
	return nil
}

// lastSeenTime maps the "never seen" sentinel 0 to NULL.
func lastSeenTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
