package monitoring

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/smart-sustain/sustain-cli/internal/model"
)

// StatusSource is the subset of the store the collector reads.
type StatusSource interface {
	CountReadings(ctx context.Context) (map[string]int, error)
	ListSnapshots(ctx context.Context, limit int) ([]model.Snapshot, error)
}

// Status is a point-in-time view of stored data.
type Status struct {
	ReadingCounts  map[string]int  `json:"reading_counts"`
	TotalReadings  int             `json:"total_readings"`
	EmptyDomains   []string        `json:"empty_domains,omitempty"`
	LatestSnapshot *model.Snapshot `json:"latest_snapshot,omitempty"`
	CollectedAt    time.Time       `json:"collected_at"`
}

// Collector gathers store status for the status command and endpoint.
type Collector struct {
	source  StatusSource
	domains []string
	clock   clockwork.Clock
}

// NewCollector creates a Collector reporting on the given domains.
func NewCollector(source StatusSource, domains []string, opts ...Option) *Collector {
	o := applyOptions(opts)
	return &Collector{source: source, domains: domains, clock: o.clock}
}

// Collect gathers reading counts per domain and the latest persisted snapshot.
func (c *Collector) Collect(ctx context.Context) (*Status, error) {
	counts, err := c.source.CountReadings(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count readings")
	}

	st := &Status{
		ReadingCounts: make(map[string]int, len(c.domains)),
		CollectedAt:   c.clock.Now().UTC(),
	}
	for _, d := range c.domains {
		n := counts[d]
		st.ReadingCounts[d] = n
		st.TotalReadings += n
		if n == 0 {
			st.EmptyDomains = append(st.EmptyDomains, d)
		}
	}

	snaps, err := c.source.ListSnapshots(ctx, 1)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: latest snapshot")
	}
	if len(snaps) > 0 {
		st.LatestSnapshot = &snaps[0]
	}
	return st, nil
}
