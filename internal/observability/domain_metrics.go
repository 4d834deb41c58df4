package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	assistantRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feza_assistant_requests_total",
			Help: "Total number of assistant requests by response type and log status.",
		},
		[]string{"type", "status"},
	)
	assistantRequestDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feza_assistant_request_duration_ms",
			Help:    "End-to-end assistant pipeline latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 90000},
		},
	)
	assistantStageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feza_assistant_stage_failures_total",
			Help: "Total number of assistant requests that failed, by pipeline stage.",
		},
		[]string{"stage"},
	)
	assistantRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feza_assistant_rejected_total",
			Help: "Total number of assistant requests rejected because the concurrency limit was saturated.",
		},
	)
	sqlBlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feza_sql_blocked_total",
			Help: "Total number of generated statements rejected by the read-only policy.",
		},
		[]string{"reason"},
	)
	llmAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feza_llm_attempts_total",
			Help: "Total number of text-generation attempts by outcome.",
		},
		[]string{"outcome"},
	)
	auditWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feza_audit_write_failures_total",
			Help: "Total number of interaction log entries that could not be persisted.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		assistantRequestsTotal,
		assistantRequestDurationMs,
		assistantStageFailuresTotal,
		assistantRejectedTotal,
		sqlBlockedTotal,
		llmAttemptsTotal,
		auditWriteFailuresTotal,
	)
}

func ObserveAssistantRequest(responseType, status string, elapsed time.Duration) {
	assistantRequestsTotal.WithLabelValues(responseType, status).Inc()
	assistantRequestDurationMs.Observe(float64(elapsed.Milliseconds()))
}

func IncrementStageFailure(stage string) {
	assistantStageFailuresTotal.WithLabelValues(stage).Inc()
}

func IncrementAssistantRejected() {
	assistantRejectedTotal.Inc()
}

func IncrementSQLBlocked(reason string) {
	sqlBlockedTotal.WithLabelValues(reason).Inc()
}

func IncrementLLMAttempt(outcome string) {
	llmAttemptsTotal.WithLabelValues(outcome).Inc()
}

func IncrementAuditWriteFailure() {
	auditWriteFailuresTotal.Inc()
}
