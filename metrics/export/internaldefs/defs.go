package internaldefs

import (
	"github.com/passless/passless"
)

// CounterDef binds one MetricID to its published name.
type CounterDef struct {
	ID   passless.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in publication order.
var CounterDefs = []CounterDef{
	{ID: passless.MetricOTPStarted, Name: "passless_otp_started_total", Help: "Successfully delivered OTP emails."},
	{ID: passless.MetricOTPStartFailed, Name: "passless_otp_start_failed_total", Help: "OTP start requests that produced no email."},
	{ID: passless.MetricOTPRateLimited, Name: "passless_otp_rate_limited_total", Help: "OTP starts denied by the local request window."},
	{ID: passless.MetricOTPVerified, Name: "passless_otp_verified_total", Help: "Successful code exchanges."},
	{ID: passless.MetricOTPVerifyFailed, Name: "passless_otp_verify_failed_total", Help: "Rejected code exchanges."},
	{ID: passless.MetricRefreshSuccess, Name: "passless_refresh_success_total", Help: "Successful silent refreshes."},
	{ID: passless.MetricRefreshFailure, Name: "passless_refresh_failure_total", Help: "Refreshes that burned the session."},
	{ID: passless.MetricSessionExpired, Name: "passless_session_expired_total", Help: "Sessions dropped at their absolute lifetime."},
	{ID: passless.MetricLogout, Name: "passless_logout_total", Help: "Explicit logouts."},
	{ID: passless.MetricProfileFetched, Name: "passless_profile_fetched_total", Help: "Provider profile fetches."},
	{ID: passless.MetricProfileCacheHit, Name: "passless_profile_cache_hit_total", Help: "Profile reads served from the local cache."},
	{ID: passless.MetricReconciled, Name: "passless_reconciled_total", Help: "Startup state reconciliations."},
}

// BroadcastDroppedName is published by every exporter alongside CounterDefs.
const BroadcastDroppedName = "passless_broadcast_dropped_total"

// BroadcastDroppedHelp documents the shed-event counter.
const BroadcastDroppedHelp = "Dropped broadcast events due to dispatcher backpressure."
