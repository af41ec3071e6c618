package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordOperationIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordOperation("SEND", "COMPLETED")
	m.RecordOperation("SEND", "COMPLETED")

	assert.Equal(t, float64(2), counterValue(t, m.OperationsTotal.WithLabelValues("SEND", "COMPLETED")))
}

func TestRecordStepTransition(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordStepTransition("BURN_INTENT", "CONFIRMED")
	assert.Equal(t, float64(1), counterValue(t, m.StepTransitions.WithLabelValues("BURN_INTENT", "CONFIRMED")))
}

func TestObserveReconcilerTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveReconcilerTick(50 * time.Millisecond)
	assert.Equal(t, float64(1), counterValue(t, m.ReconcilerTicksRun))
}

func TestRecordGatewayAndSwapRouterCalls(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordGatewayCall("GetBalance", 10*time.Millisecond, true)
	m.RecordGatewayCall("GetBalance", 10*time.Millisecond, false)
	m.RecordSwapRouterCall("GetQuote", 10*time.Millisecond, true)

	assert.Equal(t, float64(1), counterValue(t, m.GatewayCallsTotal.WithLabelValues("GetBalance", "success")))
	assert.Equal(t, float64(1), counterValue(t, m.GatewayCallsTotal.WithLabelValues("GetBalance", "failure")))
	assert.Equal(t, float64(1), counterValue(t, m.SwapRouterCallsTotal.WithLabelValues("GetQuote", "success")))
}
