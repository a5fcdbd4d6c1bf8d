package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/smart-sustain/sustain-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS readings (
	id          TEXT PRIMARY KEY,
	domain      TEXT NOT NULL,
	metric      TEXT NOT NULL,
	value       REAL NOT NULL,
	observed_at DATETIME NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS snapshots (
	id           TEXT PRIMARY KEY,
	composite    REAL NOT NULL,
	domains      TEXT NOT NULL,
	weights_hash TEXT NOT NULL,
	computed_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_domain_metric ON readings(domain, metric, observed_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_computed_at ON snapshots(computed_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertReadings(ctx context.Context, readings []model.Reading) (int, error) {
	if len(readings) == 0 {
		return 0, nil
	}
	rows := prepareReadings(readings, s.now(), uuid.NewString)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert readings")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO readings (id, domain, metric, value, observed_at, source, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert reading")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Domain, r.Metric, r.Value, r.ObservedAt, r.Source, r.CreatedAt); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert reading %s/%s", r.Domain, r.Metric)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit readings")
	}
	return len(rows), nil
}

func (s *SQLiteStore) LatestReadings(ctx context.Context, domain string) ([]model.Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, domain, metric, value, observed_at, source, created_at
		 FROM readings WHERE domain = ?`,
		domain,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest readings %s", domain)
	}
	defer rows.Close() //nolint:errcheck

	var all []model.Reading
	for rows.Next() {
		var r model.Reading
		if err := rows.Scan(&r.ID, &r.Domain, &r.Metric, &r.Value, &r.ObservedAt, &r.Source, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reading")
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: latest readings iterate")
	}
	return latestPerMetric(all), nil
}

func (s *SQLiteStore) CountReadings(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain, COUNT(*) FROM readings GROUP BY domain`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count readings")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var domain string
		var n int
		if err := rows.Scan(&domain, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reading count")
		}
		counts[domain] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count readings iterate")
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	domainsJSON, err := json.Marshal(snap.Domains)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot domains")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, composite, domains, weights_hash, computed_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.Composite, string(domainsJSON), snap.WeightsHash, snap.ComputedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert snapshot %s", snap.ID)
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, composite, domains, weights_hash, computed_at FROM snapshots WHERE id = ?`, id)
	snap, err := scanSQLiteSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: snapshot %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", id)
	}
	return snap, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, composite, domains, weights_hash, computed_at FROM snapshots
		 ORDER BY computed_at DESC, rowid DESC LIMIT ?`,
		snapshotLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Snapshot
	for rows.Next() {
		snap, err := scanSQLiteSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		out = append(out, *snap)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSnapshot(row rowScanner) (*model.Snapshot, error) {
	var snap model.Snapshot
	var domainsJSON string
	if err := row.Scan(&snap.ID, &snap.Composite, &domainsJSON, &snap.WeightsHash, &snap.ComputedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(domainsJSON), &snap.Domains); err != nil {
		return nil, eris.Wrap(err, "unmarshal snapshot domains")
	}
	return &snap, nil
}
