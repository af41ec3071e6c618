package httpclient

import (
	"sync"
	"time"
)

// EndpointHealth is the health status of one configured endpoint.
type EndpointHealth struct {
	Endpoint        string
	TotalCalls      int64
	SuccessfulCalls int64
	FailedCalls     int64
	AvgLatencyMs    int64
	LastSuccess     int64
	LastFailure     int64
	CircuitOpen     bool
}

// HealthTracker tracks endpoint health for failover decisions, exactly the
// role arcsign's rpc.RPCHealthTracker plays for its JSON-RPC transport.
type HealthTracker interface {
	RecordSuccess(endpoint string, durationMs int64)
	RecordFailure(endpoint string, err error)
	IsHealthy(endpoint string) bool
}

// CircuitHealthTracker is a circuit-breaker HealthTracker: an endpoint's
// circuit opens once its failed calls outnumber its successful calls by
// failureThreshold, and closes again once successful calls outnumber failed
// calls by successThreshold. Both counts are lifetime totals, not runs of
// consecutive results. IsHealthy reports an open endpoint as unhealthy only
// until circuitOpenWindow has passed since its last failure. Grounded
// directly on arcsign's chainadapter/rpc.SimpleHealthTracker.
type CircuitHealthTracker struct {
	mu     sync.RWMutex
	health map[string]*EndpointHealth

	failureThreshold  int
	successThreshold  int
	circuitOpenWindow time.Duration
}

// NewCircuitHealthTracker returns a tracker with arcsign's default
// thresholds (3 failures to open, 2 successes to close, 30s open window).
func NewCircuitHealthTracker() *CircuitHealthTracker {
	return &CircuitHealthTracker{
		health:            make(map[string]*EndpointHealth),
		failureThreshold:  3,
		successThreshold:  2,
		circuitOpenWindow: 30 * time.Second,
	}
}

func (t *CircuitHealthTracker) RecordSuccess(endpoint string, durationMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.getOrCreate(endpoint)
	h.TotalCalls++
	h.SuccessfulCalls++
	h.LastSuccess = time.Now().Unix()

	if h.AvgLatencyMs == 0 {
		h.AvgLatencyMs = durationMs
	} else {
		h.AvgLatencyMs = (h.AvgLatencyMs*9 + durationMs) / 10
	}

	if h.CircuitOpen {
		consecutiveSuccesses := h.SuccessfulCalls - h.FailedCalls
		if consecutiveSuccesses >= int64(t.successThreshold) {
			h.CircuitOpen = false
		}
	}
}

func (t *CircuitHealthTracker) RecordFailure(endpoint string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.getOrCreate(endpoint)
	h.TotalCalls++
	h.FailedCalls++
	h.LastFailure = time.Now().Unix()

	consecutiveFailures := h.FailedCalls - h.SuccessfulCalls
	if consecutiveFailures >= int64(t.failureThreshold) {
		h.CircuitOpen = true
	}
}

func (t *CircuitHealthTracker) IsHealthy(endpoint string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.health[endpoint]
	if !ok {
		return true
	}
	if h.CircuitOpen {
		sinceFailure := time.Now().Unix() - h.LastFailure
		if sinceFailure < int64(t.circuitOpenWindow.Seconds()) {
			return false
		}
	}
	return true
}

func (t *CircuitHealthTracker) getOrCreate(endpoint string) *EndpointHealth {
	h, ok := t.health[endpoint]
	if !ok {
		h = &EndpointHealth{Endpoint: endpoint}
		t.health[endpoint] = h
	}
	return h
}
