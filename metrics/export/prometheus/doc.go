// Package prometheus renders Machine counters in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [passless.Machine] and exposes an
// [http.Handler] suitable for mounting at /metrics. All counter names are
// prefixed passless_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate machine state.
package prometheus
