// Package telemetry wires OpenTelemetry into the billing sync server.
//
// New builds the tracer and meter providers from the telemetry section of
// the configuration, exporting over OTLP/HTTP and optionally serving
// metrics for Prometheus to scrape. TracingMiddleware and MetricsMiddleware
// instrument the HTTP API. SyncMetrics and IngestMetrics are recorded by
// the batch processor and the ingestor.
package telemetry
