package middleware

import (
	"net/http"

	"github.com/arcsign/opsengine/internal/httpapi"
	"github.com/arcsign/opsengine/internal/ratelimit"
)

// RateLimit throttles requests per authenticated user using l, rejecting
// over-limit requests with 429. Must run after Auth so the user id is on
// the request context.
func RateLimit(l *ratelimit.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := httpapi.UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(userID) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
