// Package otel binds session engine metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter, an
// Int64ObservableGauge per histogram bucket, and status/source indicator gauges carrying a
// "status" or "source" attribute. A single callback reads [goSession.Engine.MetricsSnapshot]
// on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
