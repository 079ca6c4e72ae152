package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxthink",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxthink",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Model generation counters
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxthink",
			Subsystem: "api",
			Name:      "generations_total",
			Help:      "Total model generation attempts",
		},
		[]string{"jurisdiction", "status"},
	)

	// Model generation duration
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxthink",
			Subsystem: "api",
			Name:      "generation_duration_seconds",
			Help:      "Model generation duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"jurisdiction"},
	)

	// Token usage counters
	GenerationTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxthink",
			Subsystem: "api",
			Name:      "generation_tokens_total",
			Help:      "Total tokens consumed by model generations",
		},
		[]string{"kind"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordGeneration records one model generation attempt
func RecordGeneration(jurisdiction, status string, durationSec float64) {
	GenerationsTotal.WithLabelValues(jurisdiction, status).Inc()
	GenerationDuration.WithLabelValues(jurisdiction).Observe(durationSec)
}

// RecordGenerationTokens records token usage reported by the provider
func RecordGenerationTokens(promptTokens, completionTokens int) {
	GenerationTokensTotal.WithLabelValues("prompt").Add(float64(promptTokens))
	GenerationTokensTotal.WithLabelValues("completion").Add(float64(completionTokens))
}
