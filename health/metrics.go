// Package health implements the Health Aggregator (§4.I): it composes the
// Provider Registry's class-by-class status, the AI Invocation Adapter's
// availability, required environment-configuration presence, and the
// Artifact Store's filesystem writability into one overall verdict, and
// exposes the same facts as Prometheus gauges. Grounded on the platform's
// infrastructure/metrics package (CounterVec/GaugeVec registration pattern),
// narrowed to the coordination core's three gauge families.
package health

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors the Health Aggregator and Master
// Pipeline Orchestrator update as they observe provider/session state.
type Metrics struct {
	ProviderEndpointStatus *prometheus.GaugeVec
	StageDuration          *prometheus.HistogramVec
	SessionStatusTotal     *prometheus.CounterVec
}

// NewMetrics creates Metrics and registers its collectors against
// registerer. A nil registerer skips registration (useful in tests that
// construct Metrics repeatedly against the same process-global default
// registry).
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderEndpointStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_provider_endpoint_status",
				Help: "Number of provider endpoints in the labeled capability class currently in the labeled status (endpoint label is \"*\" for per-class counts).",
			},
			[]string{"class", "endpoint", "status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_pipeline_stage_duration_seconds",
				Help:    "Duration of each pipeline stage execution.",
				Buckets: []float64{.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"stage"},
		),
		SessionStatusTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_session_status_total",
				Help: "Total sessions reaching each terminal status.",
			},
			[]string{"status"},
		),
	}
	if registerer != nil {
		registerer.MustRegister(m.ProviderEndpointStatus, m.StageDuration, m.SessionStatusTotal)
	}
	return m
}
