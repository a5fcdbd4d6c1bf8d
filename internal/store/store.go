// Package store persists raw metric readings and dashboard snapshots.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/smart-sustain/sustain-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// DefaultSnapshotLimit caps ListSnapshots when no positive limit is given.
const DefaultSnapshotLimit = 50

// Store defines the persistence interface for readings and snapshots.
// Implementations are safe for concurrent use.
type Store interface {
	// Readings
	InsertReadings(ctx context.Context, readings []model.Reading) (int, error)
	LatestReadings(ctx context.Context, domain string) ([]model.Reading, error)
	CountReadings(ctx context.Context) (map[string]int, error)

	// Snapshots
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]model.Snapshot, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// prepareReadings assigns IDs and timestamps to readings that lack them and
// normalizes times to UTC. It returns a new slice.
func prepareReadings(readings []model.Reading, now time.Time, newID func() string) []model.Reading {
	out := make([]model.Reading, len(readings))
	for i, r := range readings {
		if r.ID == "" {
			r.ID = newID()
		}
		if r.ObservedAt.IsZero() {
			r.ObservedAt = now
		}
		r.ObservedAt = r.ObservedAt.UTC()
		r.CreatedAt = now
		out[i] = r
	}
	return out
}

// latestPerMetric keeps the newest reading of each metric, ordered by metric
// name.
func latestPerMetric(readings []model.Reading) []model.Reading {
	latest := make(map[string]model.Reading, len(readings))
	for _, r := range readings {
		cur, ok := latest[r.Metric]
		if !ok || r.ObservedAt.After(cur.ObservedAt) ||
			(r.ObservedAt.Equal(cur.ObservedAt) && r.CreatedAt.After(cur.CreatedAt)) {
			latest[r.Metric] = r
		}
	}
	out := make([]model.Reading, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metric < out[j].Metric })
	return out
}

func snapshotLimit(limit int) int {
	if limit <= 0 {
		return DefaultSnapshotLimit
	}
	return limit
}
