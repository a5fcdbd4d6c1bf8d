// Package observability exposes Prometheus collectors for dashboard cycles.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sustain"

// Metrics holds the Prometheus collectors updated by the dashboard, importer
// and alerter.
type Metrics struct {
	CompositeScore  prometheus.Gauge
	DomainScore     *prometheus.GaugeVec   // labels: domain
	DomainAvailable *prometheus.GaugeVec   // labels: domain
	ProviderErrors  *prometheus.CounterVec // labels: domain
	Cycles          prometheus.Counter
	CycleDuration   prometheus.Histogram

	ReadingsImported *prometheus.CounterVec // labels: domain
	AlertsSent       *prometheus.CounterVec // labels: type, outcome={sent,failed,logged}
}

func newMetrics() *Metrics {
	return &Metrics{
		CompositeScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "composite_score",
			Help:      "Composite sustainability score of the last dashboard cycle.",
		}),
		DomainScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "domain_score",
			Help:      "Displayed domain score of the last dashboard cycle (0 when unavailable).",
		}, []string{"domain"}),
		DomainAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "domain_available",
			Help:      "1 when the domain provider succeeded in the last cycle, 0 otherwise.",
		}, []string{"domain"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Domain provider failures by domain.",
		}, []string{"domain"}),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_cycles_total",
			Help:      "Total dashboard cycles computed.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dashboard_cycle_duration_seconds",
			Help:      "Duration of a complete dashboard cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		ReadingsImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_imported_total",
			Help:      "Raw readings written by the importer, by domain.",
		}, []string{"domain"}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts delivered by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CompositeScore,
		m.DomainScore,
		m.DomainAvailable,
		m.ProviderErrors,
		m.Cycles,
		m.CycleDuration,
		m.ReadingsImported,
		m.AlertsSent,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsWithRegistry creates metrics registered on reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
