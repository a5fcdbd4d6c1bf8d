// Package provider defines domain score providers: collaborators that turn a
// domain's raw readings into a single 0-100 score.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Provider produces the score for one domain. ComputeScore must not have
// presentation side effects; RenderDetail exposes the breakdown for detail
// views.
type Provider interface {
	Domain() string
	ComputeScore(ctx context.Context) (float64, error)
	RenderDetail(ctx context.Context) (*Detail, error)
}

// ProviderError reports that a domain's score could not be produced.
type ProviderError struct {
	Domain string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Domain, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Detail is the per-metric breakdown behind a domain score.
type Detail struct {
	Domain  string         `json:"domain"`
	Score   float64        `json:"score"`
	Metrics []MetricDetail `json:"metrics"`
	Missing []string       `json:"missing,omitempty"` // configured metrics with no reading
}

// MetricDetail shows how one raw reading was scored.
type MetricDetail struct {
	Name       string    `json:"name"`
	Raw        float64   `json:"raw"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	Reverse    bool      `json:"reverse"`
	Normalized float64   `json:"normalized"` // before clamping
	Score      float64   `json:"score"`      // clamped to [0, 100]
	ObservedAt time.Time `json:"observed_at"`
}
