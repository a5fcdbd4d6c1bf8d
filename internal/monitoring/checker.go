package monitoring

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/smart-sustain/sustain-cli/internal/config"
	"github.com/smart-sustain/sustain-cli/internal/model"
)

// Cycler runs one dashboard cycle.
type Cycler interface {
	Collect(ctx context.Context) (*model.Snapshot, error)
}

// SnapshotSaver persists snapshots.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error
}

// Checker periodically runs a dashboard cycle, persists the snapshot, and
// evaluates alerts.
type Checker struct {
	cycler  Cycler
	saver   SnapshotSaver
	alerter *Alerter
	cfg     config.MonitoringConfig
	clock   clockwork.Clock
}

// NewChecker creates a background checker.
func NewChecker(cycler Cycler, saver SnapshotSaver, alerter *Alerter, cfg config.MonitoringConfig, opts ...Option) *Checker {
	o := applyOptions(opts)
	return &Checker{
		cycler:  cycler,
		saver:   saver,
		alerter: alerter,
		cfg:     cfg,
		clock:   o.clock,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting score checker", zap.Duration("interval", interval))

	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("score checker stopped")
			return
		case <-ticker.Chan():
			c.Check(ctx)
		}
	}
}

// Check runs one cycle, saves it, and sends any alerts. Failures are logged.
func (c *Checker) Check(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.cycler.Collect(ctx)
	if err != nil {
		log.Error("monitoring: dashboard cycle failed", zap.Error(err))
		return
	}
	if c.saver != nil {
		if err := c.saver.SaveSnapshot(ctx, snap); err != nil {
			log.Error("monitoring: save snapshot", zap.Error(err))
		}
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: no alerts triggered")
		return
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}
