// Package prometheus renders session engine metrics in Prometheus text exposition format.
//
// [NewPrometheusExporter] accepts a [goSession.Engine] and exposes an [http.Handler] that
// renders every counter, the validation latency histogram, and two indicator gauges for
// the current session status and source. Counter names are prefixed gosession_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
