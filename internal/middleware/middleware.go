// Package middleware wraps the engine's HTTP surface with the chain of
// cross-cutting concerns every handler needs: panic recovery, request
// tracing, structured request logging, and bearer-session authentication.
// The shape follows DanDo385-go-edu's mini-service-all-features
// (internal/middleware): a Middleware func type and a Chain helper that
// applies them in order, first-listed wraps outermost.
package middleware

import "net/http"

type Middleware func(http.Handler) http.Handler

// Chain applies middlewares in order; the first in the list wraps all
// the others.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// ResponseWriter wraps http.ResponseWriter to capture the status code and
// byte count for logging.
type ResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *ResponseWriter) StatusCode() int   { return rw.statusCode }
func (rw *ResponseWriter) BytesWritten() int { return rw.bytesWritten }
