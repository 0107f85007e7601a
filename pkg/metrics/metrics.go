// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes recorded by RecordTurn.
const (
	OutcomeMatched  = "matched"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
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

	// TurnsTotal counts dispatched turns by mode and outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_turns_total",
			Help: "Conversation turns handled by the dispatcher",
		},
		[]string{"mode", "outcome"},
	)

	// ClassificationDuration tracks the classification model call.
	ClassificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chain_classification_duration_seconds",
			Help:    "Classification model call duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20},
		},
		[]string{"mode"},
	)

	// ModeTransitionsTotal counts mode changes performed by transactions.
	ModeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chain_mode_transitions_total",
			Help: "Mode transitions performed by side effects",
		},
		[]string{"from", "to"},
	)

	// KnowledgeMatchesTotal counts knowledge lookups by whether any part passed the bar.
	KnowledgeMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_matches_total",
			Help: "Knowledge lookups by acceptance",
		},
		[]string{"collection", "accepted"},
	)

	// KnowledgePartsAccepted tracks how many parts passed the knowledge bar per prompt.
	KnowledgePartsAccepted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "knowledge_parts_accepted",
			Help:    "Knowledge parts accepted into a composed prompt",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
		},
	)

	// LLMStreamDuration tracks LLM streaming response duration.
	LLMStreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_stream_duration_seconds",
			Help:    "LLM streaming response duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
		[]string{"tenant_id"},
	)

	// MessagesTotal tracks total messages appended to conversation logs.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages sent",
		},
		[]string{"tenant_id", "role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records the outcome of one dispatched turn.
func RecordTurn(mode, outcome string) {
	TurnsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordClassification records the latency of a classification call.
func RecordClassification(mode string, duration float64) {
	ClassificationDuration.WithLabelValues(mode).Observe(duration)
}

// RecordTransition records a mode change.
func RecordTransition(from, to string) {
	ModeTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordKnowledge records a composed knowledge prompt.
func RecordKnowledge(collection string, accepted int) {
	KnowledgeMatchesTotal.WithLabelValues(collection, boolLabel(accepted > 0)).Inc()
	KnowledgePartsAccepted.Observe(float64(accepted))
}

// RecordLLMStream records metrics for an LLM streaming response.
func RecordLLMStream(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMStreamDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
