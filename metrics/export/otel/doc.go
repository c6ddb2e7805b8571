// Package otel bridges Machine counters into OpenTelemetry observable
// instruments. Values are read from snapshots inside a registered callback,
// so the hot path stays free of exporter work.
package otel
