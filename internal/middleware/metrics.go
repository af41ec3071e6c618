package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arcsign/opsengine/internal/metrics"
)

// Metrics records request counts, durations, and in-flight gauge to m.
func Metrics(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.HTTPActiveRequests.Inc()
			defer m.HTTPActiveRequests.Dec()

			rw := NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			status := strconv.Itoa(rw.StatusCode())
			m.HTTPRequestsTotal.WithLabelValues(r.Method, r.Pattern, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, r.Pattern, status).Observe(time.Since(start).Seconds())
		})
	}
}
