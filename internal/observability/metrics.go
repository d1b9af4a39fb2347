// Package observability wires Prometheus metrics and OpenTelemetry tracing
// around the provider, tool, and orchestration layers. It follows the
// teacher's promauto/otlptracegrpc convention, trimmed to the gauges and
// spans this gateway's components actually emit.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a centralized set of Prometheus collectors for the chat loop,
// provider layer, tool dispatch, and reflection job.
type Metrics struct {
	// LLMRequestCounter counts provider calls by alias, model, and outcome.
	// Labels: alias, provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMRequestDuration measures provider call latency in seconds.
	// Labels: alias, provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed tracks token consumption by type.
	// Labels: alias, model, type (input|output|cache_read|cache_create)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool dispatches by name and outcome.
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool dispatch latency in seconds.
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and error kind.
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions gauges concurrently in-flight chat turns.
	ActiveSessions prometheus.Gauge

	// CircuitBreakerState gauges breaker state per model alias: 0=closed,
	// 1=open, 2=half-open.
	CircuitBreakerState *prometheus.GaugeVec

	// ReflectionRuns counts reflection job executions by outcome.
	ReflectionRuns *prometheus.CounterVec
}

// NewMetrics registers and returns the collector set. Call once at process
// startup; a nil *Metrics is valid everywhere it's threaded through, so
// callers that don't want a /metrics endpoint can skip this entirely.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_gateway_llm_requests_total",
			Help: "Total provider calls by alias, provider, model, and outcome.",
		}, []string{"alias", "provider", "model", "status"}),

		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nexus_gateway_llm_request_duration_seconds",
			Help:    "Provider call latency in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"alias", "provider", "model"}),

		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_gateway_llm_tokens_total",
			Help: "Token consumption by alias, model, and kind.",
		}, []string{"alias", "model", "type"}),

		ToolExecutionCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_gateway_tool_executions_total",
			Help: "Tool dispatches by name and outcome.",
		}, []string{"tool_name", "status"}),

		ToolExecutionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nexus_gateway_tool_execution_duration_seconds",
			Help:    "Tool dispatch latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"tool_name"}),

		ErrorCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_gateway_errors_total",
			Help: "Errors by component and error kind.",
		}, []string{"component", "error_type"}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "nexus_gateway_active_turns",
			Help: "Chat turns currently being processed.",
		}),

		CircuitBreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nexus_gateway_circuit_breaker_state",
			Help: "Circuit breaker state per model alias (0=closed, 1=open, 2=half-open).",
		}, []string{"alias"}),

		ReflectionRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "nexus_gateway_reflection_runs_total",
			Help: "Reflection job runs by outcome.",
		}, []string{"outcome"}),
	}
}

// RecordLLMRequest records one provider call's outcome, latency, and usage.
func (m *Metrics) RecordLLMRequest(alias, provider, model, status string, durationSeconds float64, inputTokens, outputTokens, cacheRead, cacheCreate int) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(alias, provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(alias, provider, model).Observe(durationSeconds)
	if inputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(alias, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(alias, model, "output").Add(float64(outputTokens))
	}
	if cacheRead > 0 {
		m.LLMTokensUsed.WithLabelValues(alias, model, "cache_read").Add(float64(cacheRead))
	}
	if cacheCreate > 0 {
		m.LLMTokensUsed.WithLabelValues(alias, model, "cache_create").Add(float64(cacheCreate))
	}
}

// RecordToolExecution records one tool dispatch's outcome and latency.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a component/kind pair.
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// TurnStarted/TurnFinished bracket a chat turn for the active-turns gauge.
func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) TurnFinished() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// SetCircuitBreakerState records a breaker transition for an alias.
func (m *Metrics) SetCircuitBreakerState(alias string, state float64) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(alias).Set(state)
}

// RecordReflectionRun records a completed reflection job's outcome.
func (m *Metrics) RecordReflectionRun(outcome string) {
	if m == nil {
		return
	}
	m.ReflectionRuns.WithLabelValues(outcome).Inc()
}
