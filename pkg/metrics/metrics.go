// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// GenerationDuration tracks text generation duration.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_generation_duration_seconds",
			Help:    "Text generation duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"purpose", "status"},
	)

	// GenerationQueueWait tracks time spent waiting for the generation gate.
	GenerationQueueWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_generation_queue_wait_seconds",
			Help:    "Time spent waiting for the single generation slot",
			Buckets: []float64{.001, .01, .1, .5, 1, 5, 10, 30, 60, 120},
		},
	)

	// ModelReady is 1 once the generator has been loaded.
	ModelReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "llm_model_ready",
			Help: "Whether the text generator has finished loading",
		},
	)

	// SearchCallsTotal tracks search provider calls.
	SearchCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_calls_total",
			Help: "Search provider calls",
		},
		[]string{"mode", "attempt", "status"},
	)

	// EvidenceTotal tracks evidence outcomes.
	EvidenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_outcomes_total",
			Help: "Evidence retrieval outcomes",
		},
		[]string{"mode", "outcome"},
	)

	// QueryFallbacksTotal tracks query synthesis fallbacks.
	QueryFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_fallbacks_total",
			Help: "Search queries that fell back to a deterministic value",
		},
		[]string{"mode"},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks total messages appended.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"role"},
	)

	// JournalPublishFailures tracks failed NATS journal publishes.
	JournalPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_publish_failures_total",
			Help: "Failed journal publishes",
		},
		[]string{"kind"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGeneration records metrics for one generator call.
func RecordGeneration(purpose, status string, duration float64) {
	GenerationDuration.WithLabelValues(purpose, status).Observe(duration)
}

// RecordSearch records one provider call.
func RecordSearch(mode, attempt, status string) {
	SearchCallsTotal.WithLabelValues(mode, attempt, status).Inc()
}

// RecordEvidence records the outcome of one retrieval.
func RecordEvidence(mode, outcome string) {
	EvidenceTotal.WithLabelValues(mode, outcome).Inc()
}

// SetModelReady flips the model readiness gauge.
func SetModelReady(ready bool) {
	if ready {
		ModelReady.Set(1)
		return
	}
	ModelReady.Set(0)
}
