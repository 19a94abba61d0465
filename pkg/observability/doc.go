// Package observability provides structured logging, Prometheus metrics, and health checks.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("email", email).Info("user promoted to admin")
//
// Context-aware logging (request id and user id are picked up automatically):
//
//	logger := observability.FromContext(r.Context())
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.TokenVerificationsTotal.WithLabelValues("expired").Inc()
//	metrics.ReconcileTotal.WithLabelValues("linked_by_email").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	status := checker.Check(ctx)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Authentication middleware emitting auth metrics
package observability
