// Package metric provides Prometheus-based metrics collection and an HTTP
// server for logship observability.
//
// The package offers a centralized metrics registry managing both core
// shipper metrics (events, queue depth, batches, delivery attempts) and
// custom caller-registered metrics. It includes an HTTP server exposing
// metrics in Prometheus format.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: shipper-level metrics automatically registered (Metrics type)
//  2. Registry: extensible registration for custom metrics (MetricsRegistrar interface)
//  3. HTTP Server: metrics endpoint with a health check (Server type)
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("metrics server error: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
//	core := registry.CoreMetrics()
//	core.RecordHandlerStatus("app-logs", 2)
//	core.RecordEventEmitted("app-logs")
//	core.RecordBatchDelivered("app-logs", "2026-08-23")
//
// The server exposes Prometheus-formatted metrics at /metrics and a health
// check at /health.
//
// # Core Metrics
//
// All core metrics use the namespace "logship":
//
//   - logship_handler_status{handler="..."}
//   - logship_events_emitted_total{handler="..."}
//   - logship_events_dropped_total{handler="...",reason="queue_full|shutdown|retry_exhausted|..."}
//   - logship_events_truncated_total{handler="..."}
//   - logship_queue_depth{handler="..."} / logship_queue_bytes{handler="..."}
//   - logship_batches_delivered_total{handler="...",stream="..."}
//   - logship_batches_failed_total{handler="...",stream="...",class="..."}
//   - logship_delivery_attempts_total{handler="...",status="success|conflict|transient|..."}
//   - logship_delivery_duration_seconds{handler="...",operation="resolve|append"}
//   - logship_delivery_event_age_seconds{handler="..."}
//   - logship_delivery_cursor_conflicts_total{handler="...",stream="..."}
//   - logship_batcher_flushes_total{handler="...",trigger="count|size|interval|manual"}
//
// # Custom Metrics
//
// Callers can register their own collectors through the MetricsRegistrar
// interface; duplicate names are rejected at both the registry and the
// Prometheus level:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "app_requests_total",
//	    Help: "Total number of requests",
//	})
//	err := registry.RegisterCounter("app", "app_requests_total", counter)
//
// # Thread Safety
//
// All registry operations are thread-safe. Metric recording is lock-free
// (Prometheus guarantee), and CoreMetrics() returns a shared instance safe
// for concurrent use.
package metric
