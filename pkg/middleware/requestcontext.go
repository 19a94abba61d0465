package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/raildesk/raildesk/pkg/contextkeys"
	"github.com/raildesk/raildesk/pkg/observability"
)

// RequestContext assigns every request an id, attaches a request-scoped
// logger, and records HTTP metrics. It runs first in the chain so the id is
// present in every downstream log line.
type RequestContext struct {
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRequestContext creates the request context middleware
func NewRequestContext(logger *observability.Logger, metrics *observability.Metrics) *RequestContext {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &RequestContext{logger: logger, metrics: metrics}
}

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Handler wraps an HTTP handler with request id assignment and access logging
func (m *RequestContext) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		logger := m.logger.WithField("request_id", requestID)
		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		ctx = contextkeys.WithLogger(ctx, logger)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))
		elapsed := time.Since(start)

		if m.metrics != nil {
			path := routePattern(r)
			m.metrics.HTTPRequestsTotal.WithLabelValues(
				r.Method, path, strconv.Itoa(rec.status)).Inc()
			m.metrics.HTTPRequestDuration.WithLabelValues(
				r.Method, path).Observe(elapsed.Seconds())
		}

		logger.WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", rec.status).
			WithField("duration_ms", elapsed.Milliseconds()).
			Debug("request completed")
	})
}

// routePattern returns the mux route template to keep metric cardinality
// bounded, falling back to the raw path outside the router
func routePattern(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
