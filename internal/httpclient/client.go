// Package httpclient is the shared REST transport for the Gateway Client
// and Swap Router Client HTTP facades: round-robin endpoint selection with
// per-endpoint circuit-breaker health tracking, grounded directly on
// arcsign's chainadapter/rpc.HTTPRPCClient failover pattern, generalized
// from JSON-RPC method calls to REST method+path+JSON-body calls.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Client is a failover REST client over a fixed set of base-URL endpoints.
type Client struct {
	endpoints     []string
	currentIndex  int
	healthTracker HealthTracker
	httpClient    *http.Client
	limiter       *rate.Limiter // nil means unlimited
	headers       map[string]string
	mu            sync.RWMutex
}

// Option configures a Client.
type Option func(*Client)

// WithHealthTracker overrides the default CircuitHealthTracker.
func WithHealthTracker(t HealthTracker) Option {
	return func(c *Client) { c.healthTracker = t }
}

// WithRateLimiter attaches an outbound rate limiter; every call blocks on
// limiter.Wait before dispatching, the way
// minis/50-mini-service-all-features/internal/middleware/ratelimit.go wires
// golang.org/x/time/rate for inbound requests, applied here to outbound
// calls instead.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithHeader sets a static header (e.g. an API key) sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

// New returns a Client failing over across endpoints in order. At least one
// endpoint is required.
func New(endpoints []string, timeout time.Duration, opts ...Option) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("httpclient: at least one endpoint is required")
	}
	c := &Client{
		endpoints:     endpoints,
		healthTracker: NewCircuitHealthTracker(),
		httpClient:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DoJSON issues method+path (path is joined to each endpoint's base URL) with
// reqBody marshaled as the JSON request body (nil for no body), decoding the
// JSON response into out (nil to discard the body), retrying across
// endpoints on failure.
func (c *Client) DoJSON(ctx context.Context, method, path string, reqBody, out interface{}) error {
	var body []byte
	if reqBody != nil {
		var err error
		body, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("httpclient: failed to marshal request body: %w", err)
		}
	}

	var lastErr error
	attempted := make(map[string]bool)

	for len(attempted) < len(c.endpoints) {
		endpoint := c.nextHealthyEndpoint(attempted)
		if endpoint == "" {
			break
		}
		attempted[endpoint] = true

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("httpclient: rate limiter wait: %w", err)
			}
		}

		err := c.callEndpoint(ctx, endpoint, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("httpclient: all endpoints failed, last error: %w", lastErr)
}

func (c *Client) callEndpoint(ctx context.Context, endpoint, method, path string, body []byte, out interface{}) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.healthTracker.RecordFailure(endpoint, err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.healthTracker.RecordFailure(endpoint, err)
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		c.healthTracker.RecordFailure(endpoint, apiErr)
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			c.healthTracker.RecordFailure(endpoint, err)
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	c.healthTracker.RecordSuccess(endpoint, time.Since(start).Milliseconds())
	return nil
}

func (c *Client) nextHealthyEndpoint(attempted map[string]bool) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := 0; i < len(c.endpoints); i++ {
		idx := (c.currentIndex + i) % len(c.endpoints)
		endpoint := c.endpoints[idx]
		if attempted[endpoint] {
			continue
		}
		if c.healthTracker.IsHealthy(endpoint) {
			c.currentIndex = (idx + 1) % len(c.endpoints)
			return endpoint
		}
	}
	for _, endpoint := range c.endpoints {
		if !attempted[endpoint] {
			return endpoint
		}
	}
	return ""
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
