// Package metrics instruments the operation engine with Prometheus
// collectors. It generalizes arcsign's chainadapter/metrics.ChainMetrics
// surface (RecordRPCCall, RecordTransactionBuild/Sign/Broadcast, per-method
// aggregation) onto this engine's domain: operations, steps, and the two
// external collaborators (gateway, swap router). Unlike arcsign's
// hand-rolled PrometheusMetrics, this wires the real
// github.com/prometheus/client_golang collectors, the way
// minis/50-mini-service-all-features's cmd/service/main.go registers its
// own metrics.Metrics and serves them via promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the engine records against.
type Metrics struct {
	OperationsTotal     *prometheus.CounterVec
	StepTransitions     *prometheus.CounterVec
	ReconcilerTickSecs  prometheus.Histogram
	ReconcilerTicksRun  prometheus.Counter
	GatewayCallsTotal   *prometheus.CounterVec
	GatewayCallDuration *prometheus.HistogramVec
	SwapRouterCallsTotal   *prometheus.CounterVec
	SwapRouterCallDuration *prometheus.HistogramVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPActiveRequests  prometheus.Gauge
}

// New constructs a Metrics bundle and registers its collectors against reg.
// Pass prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsengine",
			Name:      "operations_total",
			Help:      "Total operations by type and terminal/derived status.",
		}, []string{"type", "status"}),

		StepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsengine",
			Name:      "step_transitions_total",
			Help:      "Total step status transitions by step type and resulting status.",
		}, []string{"step_type", "status"}),

		ReconcilerTickSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "opsengine",
			Name:      "reconciler_tick_duration_seconds",
			Help:      "Duration of one reconciler tick.",
			Buckets:   prometheus.DefBuckets,
		}),

		ReconcilerTicksRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opsengine",
			Name:      "reconciler_ticks_total",
			Help:      "Total reconciler ticks that actually ran (skipped overlapping ticks excluded).",
		}),

		GatewayCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsengine",
			Name:      "gateway_calls_total",
			Help:      "Total gateway client calls by method and outcome.",
		}, []string{"method", "outcome"}),

		GatewayCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opsengine",
			Name:      "gateway_call_duration_seconds",
			Help:      "Gateway client call duration by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		SwapRouterCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsengine",
			Name:      "swap_router_calls_total",
			Help:      "Total swap router client calls by method and outcome.",
		}, []string{"method", "outcome"}),

		SwapRouterCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opsengine",
			Name:      "swap_router_call_duration_seconds",
			Help:      "Swap router client call duration by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opsengine",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled by method, path, and status.",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "opsengine",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method, path, and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		HTTPActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opsengine",
			Name:      "http_active_requests",
			Help:      "In-flight HTTP requests.",
		}),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.StepTransitions,
		m.ReconcilerTickSecs,
		m.ReconcilerTicksRun,
		m.GatewayCallsTotal,
		m.GatewayCallDuration,
		m.SwapRouterCallsTotal,
		m.SwapRouterCallDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPActiveRequests,
	)
	return m
}

// RecordOperation increments the operation counter for a type/status pair.
func (m *Metrics) RecordOperation(opType, status string) {
	m.OperationsTotal.WithLabelValues(opType, status).Inc()
}

// RecordStepTransition increments the step-transition counter.
func (m *Metrics) RecordStepTransition(stepType, status string) {
	m.StepTransitions.WithLabelValues(stepType, status).Inc()
}

// ObserveReconcilerTick records one completed tick's wall-clock duration.
func (m *Metrics) ObserveReconcilerTick(d time.Duration) {
	m.ReconcilerTicksRun.Inc()
	m.ReconcilerTickSecs.Observe(d.Seconds())
}

// RecordGatewayCall records one gateway client call's outcome and latency.
func (m *Metrics) RecordGatewayCall(method string, d time.Duration, success bool) {
	outcome := outcomeLabel(success)
	m.GatewayCallsTotal.WithLabelValues(method, outcome).Inc()
	m.GatewayCallDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordSwapRouterCall records one swap router client call's outcome and
// latency.
func (m *Metrics) RecordSwapRouterCall(method string, d time.Duration, success bool) {
	outcome := outcomeLabel(success)
	m.SwapRouterCallsTotal.WithLabelValues(method, outcome).Inc()
	m.SwapRouterCallDuration.WithLabelValues(method).Observe(d.Seconds())
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
