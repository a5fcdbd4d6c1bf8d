// Package dashboard runs scoring cycles: it asks each domain provider for a
// score, records failures for display, and combines the available domains
// into a composite.
package dashboard

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/observability"
	"github.com/smart-sustain/sustain-cli/internal/provider"
	"github.com/smart-sustain/sustain-cli/internal/resilience"
	"github.com/smart-sustain/sustain-cli/internal/scoring"
)

// ErrUnknownDomain is returned by Detail for a domain with no provider.
var ErrUnknownDomain = errors.New("dashboard: unknown domain")

// Dashboard orchestrates providers and the composite scorer.
type Dashboard struct {
	providers []provider.Provider
	byDomain  map[string]provider.Provider
	scorer    *scoring.Scorer
	labels    map[string]string
	clock     clockwork.Clock
	metrics   *observability.Metrics
	retry     resilience.RetryConfig
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithClock sets the clock used to timestamp snapshots.
func WithClock(c clockwork.Clock) Option {
	return func(d *Dashboard) { d.clock = c }
}

// WithMetrics records cycle results on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dashboard) { d.metrics = m }
}

// WithRetry sets the retry policy applied to provider calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(d *Dashboard) { d.retry = cfg }
}

// WithLabels sets display labels by domain key.
func WithLabels(labels map[string]string) Option {
	return func(d *Dashboard) { d.labels = labels }
}

// New creates a Dashboard that queries providers in the given order.
func New(providers []provider.Provider, scorer *scoring.Scorer, opts ...Option) *Dashboard {
	d := &Dashboard{
		providers: providers,
		byDomain:  make(map[string]provider.Provider, len(providers)),
		scorer:    scorer,
		clock:     clockwork.NewRealClock(),
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, p := range providers {
		d.byDomain[p.Domain()] = p
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.retry.OnRetry == nil {
		d.retry.OnRetry = resilience.RetryLogger("dashboard", "compute_score")
	}
	return d
}

// Domains returns the provider domain keys in display order.
func (d *Dashboard) Domains() []string {
	out := make([]string, len(d.providers))
	for i, p := range d.providers {
		out[i] = p.Domain()
	}
	return out
}

// Label returns the display label of a domain.
func (d *Dashboard) Label(domain string) string {
	if l, ok := d.labels[domain]; ok && l != "" {
		return l
	}
	return model.DefaultLabel(domain)
}

// Scorer returns the composite scorer bound to the configured weights.
func (d *Dashboard) Scorer() *scoring.Scorer { return d.scorer }

// Collect runs one cycle with the configured weight table.
func (d *Dashboard) Collect(ctx context.Context) (*model.Snapshot, error) {
	return d.CollectWith(ctx, nil)
}

// CollectWith runs one cycle. A failing provider never fails the cycle: its
// domain is displayed as 0 with the error attached and left out of the
// composite. override replaces the configured weights when non-empty. The
// only error returned is context cancellation.
func (d *Dashboard) CollectWith(ctx context.Context, override scoring.Weights) (*model.Snapshot, error) {
	start := d.clock.Now()
	log := zap.L().With(zap.String("component", "dashboard"))

	snap := &model.Snapshot{
		ID:      uuid.NewString(),
		Domains: make([]model.DomainResult, 0, len(d.providers)),
	}
	scores := make(map[string]float64, len(d.providers))

	for _, p := range d.providers {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "dashboard: cycle canceled")
		}

		domain := p.Domain()
		result := model.DomainResult{Domain: domain, Label: d.Label(domain)}

		score, err := resilience.DoVal(ctx, d.retry, p.ComputeScore)
		if err != nil {
			result.Error = err.Error()
			log.Warn("domain unavailable", zap.String("domain", domain), zap.Error(err))
			if d.metrics != nil {
				d.metrics.ProviderErrors.WithLabelValues(domain).Inc()
			}
		} else {
			result.Display = score
			result.Available = true
			scores[domain] = score
		}
		snap.Domains = append(snap.Domains, result)
	}

	snap.Composite = d.scorer.ScoreWith(scores, override)
	if len(override) > 0 {
		snap.WeightsHash = scoring.WeightsHash(override)
	} else {
		snap.WeightsHash = d.scorer.Hash()
	}
	snap.ComputedAt = d.clock.Now().UTC()

	d.record(snap, d.clock.Since(start).Seconds())
	log.Info("dashboard cycle complete",
		zap.String("snapshot_id", snap.ID),
		zap.Float64("composite", snap.Composite),
		zap.Int("available", len(scores)),
		zap.Int("failed", len(snap.Domains)-len(scores)),
	)
	return snap, nil
}

// Detail returns the per-metric breakdown for one domain.
func (d *Dashboard) Detail(ctx context.Context, domain string) (*provider.Detail, error) {
	p, ok := d.byDomain[domain]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownDomain, "dashboard: detail %q", domain)
	}
	return resilience.DoVal(ctx, d.retry, p.RenderDetail)
}

func (d *Dashboard) record(snap *model.Snapshot, seconds float64) {
	if d.metrics == nil {
		return
	}
	d.metrics.Cycles.Inc()
	d.metrics.CycleDuration.Observe(seconds)
	d.metrics.CompositeScore.Set(snap.Composite)
	for _, r := range snap.Domains {
		d.metrics.DomainScore.WithLabelValues(r.Domain).Set(r.Display)
		available := 0.0
		if r.Available {
			available = 1
		}
		d.metrics.DomainAvailable.WithLabelValues(r.Domain).Set(available)
	}
}
