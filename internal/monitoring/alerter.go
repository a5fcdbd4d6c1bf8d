// Package monitoring evaluates dashboard snapshots against alert thresholds,
// delivers alerts, and summarizes store state.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/smart-sustain/sustain-cli/internal/config"
	"github.com/smart-sustain/sustain-cli/internal/model"
	"github.com/smart-sustain/sustain-cli/internal/observability"
	"github.com/smart-sustain/sustain-cli/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertCompositeBelowThreshold AlertType = "composite_below_threshold"
	AlertDomainFailures          AlertType = "domain_failures"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type       AlertType      `json:"type"`
	Severity   string         `json:"severity"`
	Message    string         `json:"message"`
	SnapshotID string         `json:"snapshot_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	clock   clockwork.Clock
	metrics *observability.Metrics
	retry   resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
// metrics may be nil.
func NewAlerter(cfg config.MonitoringConfig, metrics *observability.Metrics, opts ...Option) *Alerter {
	o := applyOptions(opts)
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("monitoring", "webhook")
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		clock:   o.clock,
		metrics: metrics,
		retry:   retry,
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *model.Snapshot) []Alert {
	var alerts []Alert
	now := a.clock.Now().UTC()
	failed := snap.Failed()
	available := len(snap.Domains) - len(failed)

	// Skipped when no domain is available; domain_failures covers that.
	if available > 0 && snap.Composite < a.cfg.CompositeThreshold {
		alerts = append(alerts, Alert{
			Type:       AlertCompositeBelowThreshold,
			Severity:   "high",
			SnapshotID: snap.ID,
			Message: fmt.Sprintf(
				"Composite score %.1f is below threshold %.1f (%d of %d domains available)",
				snap.Composite, a.cfg.CompositeThreshold, available, len(snap.Domains),
			),
			Details: map[string]any{
				"composite": snap.Composite,
				"threshold": a.cfg.CompositeThreshold,
				"available": available,
			},
			Timestamp: now,
		})
	}

	if len(failed) > a.cfg.MaxFailedDomains {
		alerts = append(alerts, Alert{
			Type:       AlertDomainFailures,
			Severity:   "medium",
			SnapshotID: snap.ID,
			Message: fmt.Sprintf(
				"%d domain(s) unavailable (max %d): %s",
				len(failed), a.cfg.MaxFailedDomains, strings.Join(failed, ", "),
			),
			Details: map[string]any{
				"failed":     failed,
				"max_failed": a.cfg.MaxFailedDomains,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL, or logs them when
// no webhook is configured. Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if len(alerts) == 0 {
		return 0
	}
	if a.cfg.WebhookURL == "" {
		for _, alert := range alerts {
			zap.L().Warn("monitoring: alert",
				zap.String("type", string(alert.Type)),
				zap.String("severity", alert.Severity),
				zap.String("message", alert.Message),
			)
			a.count(alert, "logged")
		}
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			a.count(alert, "failed")
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		a.count(alert, "sent")
		sent++
	}
	return sent
}

func (a *Alerter) count(alert Alert, outcome string) {
	if a.metrics != nil {
		a.metrics.AlertsSent.WithLabelValues(string(alert.Type), outcome).Inc()
	}
}

// sendWebhook posts a single alert to the webhook URL. 408, 429 and 5xx
// responses are returned as transient errors so they are retried.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
