package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/smart-sustain/sustain-cli/internal/dashboard"
	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/observability"
	"github.com/smart-sustain/sustain-cli/internal/provider"
	"github.com/smart-sustain/sustain-cli/internal/resilience"
	"github.com/smart-sustain/sustain-cli/internal/scoring"
	"github.com/smart-sustain/sustain-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "sustain.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens the configured store and ensures the schema exists.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// buildDashboard wires one metric provider per domain over st. metrics may
// be nil.
func buildDashboard(st store.Store, metrics *observability.Metrics) (*dashboard.Dashboard, error) {
	scorer, err := scoring.NewScorer(cfg.Scoring.Table())
	if err != nil {
		return nil, err
	}

	specs := make(map[string][]model.MetricSpec, len(model.Domains))
	labels := make(map[string]string, len(model.Domains))
	for _, d := range model.Domains {
		specs[d] = cfg.Domains[d].Metrics
		labels[d] = cfg.Label(d)
	}

	opts := []dashboard.Option{
		dashboard.WithLabels(labels),
		dashboard.WithRetry(resilience.WithAttempts(cfg.Scoring.RetryAttempts)),
	}
	if metrics != nil {
		opts = append(opts, dashboard.WithMetrics(metrics))
	}
	return dashboard.New(provider.FromSpecs(model.Domains, specs, st), scorer, opts...), nil
}
