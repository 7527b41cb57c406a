package pawtrail

import "sync/atomic"

// MetricID identifies one session counter.
type MetricID uint8

const (
	// MetricRequest counts requests entering the pipeline.
	MetricRequest MetricID = iota
	// MetricPreflightRefresh counts refreshes triggered by pre-flight
	// expiry checks.
	MetricPreflightRefresh
	// MetricReactiveRefresh counts refreshes triggered by a 401 response.
	MetricReactiveRefresh
	// MetricRefreshSuccess counts successful token exchanges.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed token exchanges.
	MetricRefreshFailure
	// MetricRefreshCoalesced counts callers that attached to an in-flight
	// refresh instead of starting their own.
	MetricRefreshCoalesced
	// MetricSessionInvalidated counts terminal session invalidations.
	MetricSessionInvalidated
	// MetricToggleApplied counts optimistic toggles applied locally.
	MetricToggleApplied
	// MetricToggleRollback counts toggles reverted after a failed mutation.
	MetricToggleRollback
	// MetricToggleConfirmed counts toggles confirmed by a verification read.
	MetricToggleConfirmed
	// MetricToggleRetry counts verification reads that mismatched and were
	// rescheduled.
	MetricToggleRetry
	// MetricToggleExhausted counts toggles that exhausted verification
	// attempts with a persistent mismatch.
	MetricToggleExhausted
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the session's in-process counters. All methods are safe for
// concurrent use and are no-ops on a nil or disabled receiver.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a counter set honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled: cfg.Enabled,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current value of the counter identified by id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.Value(id)
	}
	return snap
}
