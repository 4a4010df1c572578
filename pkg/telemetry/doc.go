// Package telemetry provides structured logging, Prometheus metrics and
// OpenTelemetry tracing for morphctl.
//
// Logging is built on zerolog. NewLogger constructs the process logger
// from LoggingConfig; components either use the Logger wrapper directly
// or take the underlying zerolog.Logger via Zerolog().
//
// Metrics are opt-in. A disabled MetricsConfig (or NopMetrics) yields a
// collector whose record methods are no-ops, so callers never need to
// guard instrumentation sites.
//
// Tracing follows the same pattern: a disabled TracingConfig produces a
// tracer backed by a provider with no exporter.
package telemetry
