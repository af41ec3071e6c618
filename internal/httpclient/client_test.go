package httpclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSONSuccessDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer srv.Close()

	c, err := New([]string{srv.URL}, 2*time.Second)
	require.NoError(t, err)

	var out map[string]string
	err = c.DoJSON(t.Context(), http.MethodGet, "/ping", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "yes", out["ok"])
}

func TestDoJSONFailsOverToSecondEndpoint(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer good.Close()

	c, err := New([]string{bad.URL, good.URL}, 2*time.Second)
	require.NoError(t, err)

	var out map[string]string
	err = c.DoJSON(t.Context(), http.MethodGet, "/ping", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "yes", out["ok"])
}

func TestDoJSONReturnsAPIErrorWithSelector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"selector": "TransferSpecHashUsed", "message": "already used"})
	}))
	defer srv.Close()

	c, err := New([]string{srv.URL}, 2*time.Second)
	require.NoError(t, err)

	err = c.DoJSON(t.Context(), http.MethodPost, "/burn", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "TransferSpecHashUsed", apiErr.Selector)
}

func TestDoJSONAllEndpointsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	c, err := New([]string{bad.URL}, 2*time.Second)
	require.NoError(t, err)

	err = c.DoJSON(t.Context(), http.MethodGet, "/ping", nil, nil)
	assert.Error(t, err)
}

func TestNewRejectsNoEndpoints(t *testing.T) {
	_, err := New(nil, time.Second)
	assert.Error(t, err)
}

func TestCircuitHealthTrackerOpensAfterFailures(t *testing.T) {
	tracker := NewCircuitHealthTracker()
	assert.True(t, tracker.IsHealthy("e1"))

	for i := 0; i < 3; i++ {
		tracker.RecordFailure("e1", assert.AnError)
	}
	assert.False(t, tracker.IsHealthy("e1"))
}
