package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/smart-sustain/sustain-cli/internal/db"
	"github.com/smart-sustain/sustain-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

var readingColumns = []string{"id", "domain", "metric", "value", "observed_at", "source", "created_at"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresWithPool(pool, pool.Close), nil
}

func newPostgresWithPool(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{
		pool:    pool,
		closeFn: closeFn,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS readings (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	domain      TEXT NOT NULL,
	metric      TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snapshots (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	composite    DOUBLE PRECISION NOT NULL,
	domains      JSONB NOT NULL,
	weights_hash TEXT NOT NULL,
	computed_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_domain_metric ON readings(domain, metric, observed_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_computed_at ON snapshots(computed_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertReadings(ctx context.Context, readings []model.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}
	prepared := prepareReadings(readings, s.now(), uuid.NewString)

	rows := make([][]any, len(prepared))
	for i, r := range prepared {
		rows[i] = []any{r.ID, r.Domain, r.Metric, r.Value, r.ObservedAt, r.Source, r.CreatedAt}
	}

	n, err := db.CopyFrom(ctx, s.pool, "readings", readingColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: insert readings")
	}
	return int(n), nil
}

func (s *PostgresStore) LatestReadings(ctx context.Context, domain string) ([]model.Reading, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (metric) id, domain, metric, value, observed_at, source, created_at
		 FROM readings WHERE domain = $1
		 ORDER BY metric, observed_at DESC, created_at DESC`,
		domain,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest readings %s", domain)
	}
	defer rows.Close()

	var out []model.Reading
	for rows.Next() {
		var r model.Reading
		if err := rows.Scan(&r.ID, &r.Domain, &r.Metric, &r.Value, &r.ObservedAt, &r.Source, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reading")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: latest readings iterate")
}

func (s *PostgresStore) CountReadings(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT domain, COUNT(*) FROM readings GROUP BY domain`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count readings")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var domain string
		var n int64
		if err := rows.Scan(&domain, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reading count")
		}
		counts[domain] = int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count readings iterate")
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	domainsJSON, err := json.Marshal(snap.Domains)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot domains")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, composite, domains, weights_hash, computed_at) VALUES ($1, $2, $3, $4, $5)`,
		snap.ID, snap.Composite, domainsJSON, snap.WeightsHash, snap.ComputedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert snapshot %s", snap.ID)
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, composite, domains, weights_hash, computed_at FROM snapshots WHERE id = $1`, id)
	snap, err := scanPostgresSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: snapshot %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", id)
	}
	return snap, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, limit int) ([]model.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, composite, domains, weights_hash, computed_at FROM snapshots
		 ORDER BY computed_at DESC LIMIT $1`,
		snapshotLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		snap, err := scanPostgresSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		out = append(out, *snap)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func scanPostgresSnapshot(row pgx.Row) (*model.Snapshot, error) {
	var snap model.Snapshot
	var domainsJSON []byte
	if err := row.Scan(&snap.ID, &snap.Composite, &domainsJSON, &snap.WeightsHash, &snap.ComputedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(domainsJSON, &snap.Domains); err != nil {
		return nil, eris.Wrap(err, "unmarshal snapshot domains")
	}
	return &snap, nil
}
