package metrics

import "sync/atomic"

// MetricID identifies a single counter slot. The root package owns the
// registry of IDs; this package only needs the slot count.
type MetricID uint16

// Config controls metric collection. When Enabled is false every operation
// is a no-op.
type Config struct {
	Enabled bool
}

// paddedCounter occupies a full cache line to avoid false sharing between
// adjacent counters on the hot path.
type paddedCounter struct {
	value uint64
	_     [56]byte
}

// Metrics holds atomic counters indexed by MetricID.
type Metrics struct {
	enabled  bool
	counters []paddedCounter
}

// New creates a Metrics instance with the given number of counter slots.
func New(cfg Config, slots int) *Metrics {
	if slots <= 0 {
		slots = 1
	}
	return &Metrics{
		enabled:  cfg.Enabled,
		counters: make([]paddedCounter, slots),
	}
}

// Inc atomically increments the counter for id. Out-of-range IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || int(id) >= len(m.counters) {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Get returns the current value of a single counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || int(id) >= len(m.counters) {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot is a point-in-time deep copy of all counters.
type Snapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies every counter value under atomic loads. Disabled
// instances report no slots at all, so exporters render nothing.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{Counters: map[MetricID]uint64{}}
	if m == nil || !m.enabled {
		return snap
	}
	for i := range m.counters {
		snap.Counters[MetricID(i)] = atomic.LoadUint64(&m.counters[i].value)
	}
	return snap
}
