package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Report outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalidInput  = "invalid_input"
	OutcomeConfigError   = "config_error"
	OutcomeUpstreamError = "upstream_error"
	OutcomeInternalError = "internal_error"
)

var (
	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soulverse_reports_total",
			Help: "Total number of compatibility report requests by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soulverse_upstream_attempts_total",
			Help: "Total number of model API attempts by result",
		},
		[]string{"result"},
	)

	NormalizerFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soulverse_normalizer_fallbacks_total",
			Help: "Total number of report fields replaced by their fallback",
		},
		[]string{"field"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soulverse_request_duration_seconds",
			Help:    "Duration of HTTP requests and worker jobs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 45},
		},
		[]string{"route"},
	)

	RequestsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "soulverse_requests_active",
			Help: "Number of requests or jobs currently being processed",
		},
	)
)
