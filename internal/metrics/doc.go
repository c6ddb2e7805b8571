// Package metrics provides lock-free counters for passless observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically via [sync/atomic.AddUint64]. The write path is allocation-free.
//
// # Architecture boundaries
//
// This package owns metric storage and snapshot creation. Metric export
// (OTel) lives in metrics/export/ and reads Snapshot values.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Import passless or any sibling package.
//   - Expose global metric registries.
package metrics
