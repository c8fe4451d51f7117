// Package observability provides structured logging, Prometheus metrics, health
// probes, and OpenTelemetry tracing for the gateway.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("request_id", reqID).Warn("counter store unavailable")
//
// # Prometheus Metrics
//
// Metrics are registered on an explicit registry so tests can use their own:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordRateLimitDecision("free", "allowed")
//
// All Record methods are safe on a nil *Metrics.
//
// # Health Checks
//
// The key store is required for readiness. The counter store only degrades it,
// because rate limiting keeps serving without Redis:
//
//	checker := observability.NewHealthChecker(db, observability.PingFunc(redisPing), version)
//	observability.RegisterHealthRoutes(mux, checker, metrics)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "promptvault-gateway",
//	}, logger)
//	defer providers.Shutdown(ctx)
package observability
