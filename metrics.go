package passless

import "github.com/passless/passless/internal/metrics"

// MetricID identifies one counter. The storage and snapshot machinery lives
// in internal/metrics; this package owns the registry of IDs.
type MetricID = metrics.MetricID

const (
	// MetricOTPStarted counts successfully delivered OTP emails.
	MetricOTPStarted MetricID = iota
	// MetricOTPStartFailed counts start requests that never produced an email.
	MetricOTPStartFailed
	// MetricOTPRateLimited counts starts denied by the local window.
	MetricOTPRateLimited
	// MetricOTPVerified counts successful code exchanges.
	MetricOTPVerified
	// MetricOTPVerifyFailed counts rejected code exchanges.
	MetricOTPVerifyFailed
	// MetricRefreshSuccess counts successful silent refreshes.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refreshes that burned the session.
	MetricRefreshFailure
	// MetricSessionExpired counts sessions dropped at their absolute lifetime.
	MetricSessionExpired
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricProfileFetched counts provider profile fetches.
	MetricProfileFetched
	// MetricProfileCacheHit counts profile reads served from cache.
	MetricProfileCacheHit
	// MetricReconciled counts startup state reconciliations.
	MetricReconciled
	metricIDCount
)

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot = metrics.Snapshot

// Metrics is the lock-free counter set owned by one Machine.
type Metrics = metrics.Metrics

// NewMetrics allocates counters for every MetricID.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return metrics.New(metrics.Config{Enabled: cfg.Enabled}, int(metricIDCount))
}
