package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	TokenVerificationsTotal   *prometheus.CounterVec
	TokenVerificationDuration prometheus.Histogram
	AuthRequestsTotal         *prometheus.CounterVec

	// Identity reconciliation metrics
	ReconcileTotal  *prometheus.CounterVec
	PromotionsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raildesk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "raildesk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		TokenVerificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raildesk_token_verifications_total",
				Help: "Token verification outcomes against the identity provider",
			},
			[]string{"result"}, // ok, expired, invalid, provider_error
		),
		TokenVerificationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "raildesk_token_verification_duration_seconds",
				Help:    "Latency of identity provider token verification calls",
				Buckets: prometheus.DefBuckets,
			},
		),
		AuthRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raildesk_auth_requests_total",
				Help: "Authentication middleware outcomes per request",
			},
			[]string{"outcome"}, // authenticated, unauthenticated, rejected, exempt
		),
		ReconcileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raildesk_identity_reconcile_total",
				Help: "Identity reconciliation resolution paths",
			},
			[]string{"path"}, // by_external_id, linked_by_email, not_found, conflict
		),
		PromotionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raildesk_identity_promotions_total",
				Help: "Admin promotions applied during reconciliation",
			},
			[]string{"source"}, // claim, allow_list
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "raildesk_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "raildesk_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TokenVerificationsTotal,
		m.TokenVerificationDuration,
		m.AuthRequestsTotal,
		m.ReconcileTotal,
		m.PromotionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveVerification records a token verification outcome and its latency
func (m *Metrics) ObserveVerification(result string, duration time.Duration) {
	m.TokenVerificationsTotal.WithLabelValues(result).Inc()
	m.TokenVerificationDuration.Observe(duration.Seconds())
}
