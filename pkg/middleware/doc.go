// Package middleware provides the observability layer of the storefront:
// Prometheus metrics, OpenTelemetry tracing and request logging for the
// gateway's chi router, and the hooks the API client and cart report into.
//
// # Prometheus Metrics
//
// A Metrics value owns its collectors; nothing is registered globally
// unless the default registerer is used.
//
//	reg := prometheus.NewRegistry()
//	m := middleware.NewMetrics(middleware.WithRegistry(reg))
//
//	client := api.New(baseURL, api.WithObserver(m))
//	c := cart.New(ctx, store, cart.WithPersistErrorHandler(m.RecordPersistFailure))
//
//	r := chi.NewRouter()
//	r.Use(m.Instrument)
//	r.Handle("/metrics", m.Handler())
//
// Metrics collected (namespace "storefront" by default):
//   - http_requests_total: gateway requests by route, method and status
//   - http_request_duration_seconds: gateway request latency
//   - api_calls_total: outgoing marketplace API calls by route and outcome
//   - api_call_duration_seconds: outgoing API call latency
//   - cart_persist_failures_total: cart writes the storage backend rejected
//   - active_contexts: browser contexts currently held by the gateway
//   - websocket_connections: open websocket subscriptions
//   - websocket_errors_total: websocket failures by type
//
// # OpenTelemetry
//
// Tracing starts a server span per request using the global tracer
// provider. Handlers read it back with trace.SpanFromContext.
//
//	r.Use(middleware.Tracing(middleware.WithTracerName("storefront-gateway")))
package middleware
