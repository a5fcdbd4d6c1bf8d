package provider

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/scoring"
)

// ErrNoReadings is returned when none of a domain's configured metrics has
// a reading.
var ErrNoReadings = errors.New("no readings available")

// ReadingSource returns the most recent reading of each metric for a domain.
type ReadingSource interface {
	LatestReadings(ctx context.Context, domain string) ([]model.Reading, error)
}

// MetricProvider scores a domain as the mean of its metrics' normalized,
// clamped latest readings. Readings for metrics without a spec are ignored.
type MetricProvider struct {
	domain string
	specs  []model.MetricSpec
	source ReadingSource
}

// NewMetricProvider creates a MetricProvider for domain.
func NewMetricProvider(domain string, specs []model.MetricSpec, source ReadingSource) *MetricProvider {
	return &MetricProvider{domain: domain, specs: specs, source: source}
}

// Domain returns the domain key.
func (p *MetricProvider) Domain() string { return p.domain }

// ComputeScore returns the domain score or a *ProviderError.
func (p *MetricProvider) ComputeScore(ctx context.Context) (float64, error) {
	d, err := p.detail(ctx)
	if err != nil {
		return 0, err
	}
	return d.Score, nil
}

// RenderDetail returns the per-metric breakdown or a *ProviderError.
func (p *MetricProvider) RenderDetail(ctx context.Context) (*Detail, error) {
	return p.detail(ctx)
}

func (p *MetricProvider) detail(ctx context.Context) (*Detail, error) {
	readings, err := p.source.LatestReadings(ctx, p.domain)
	if err != nil {
		return nil, &ProviderError{Domain: p.domain, Err: eris.Wrap(err, "load readings")}
	}

	latest := make(map[string]model.Reading, len(readings))
	for _, r := range readings {
		if cur, ok := latest[r.Metric]; !ok || r.ObservedAt.After(cur.ObservedAt) {
			latest[r.Metric] = r
		}
	}

	d := &Detail{Domain: p.domain}
	var sum float64
	for _, spec := range p.specs {
		r, ok := latest[spec.Name]
		if !ok {
			d.Missing = append(d.Missing, spec.Name)
			continue
		}
		normalized := scoring.Normalize(r.Value, spec.Min, spec.Max, spec.Reverse)
		score := scoring.ClampScore(normalized)
		sum += score
		d.Metrics = append(d.Metrics, MetricDetail{
			Name:       spec.Name,
			Raw:        r.Value,
			Min:        spec.Min,
			Max:        spec.Max,
			Reverse:    spec.Reverse,
			Normalized: normalized,
			Score:      score,
			ObservedAt: r.ObservedAt,
		})
	}

	if len(d.Metrics) == 0 {
		return nil, &ProviderError{Domain: p.domain, Err: ErrNoReadings}
	}
	d.Score = sum / float64(len(d.Metrics))
	return d, nil
}
