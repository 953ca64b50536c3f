package internaldefs

import (
	walletauth "github.com/MrEthical07/walletauth"
)

// CounterDef binds a Gateway counter to its exported name.
type CounterDef struct {
	ID   walletauth.MetricID
	Name string
	Help string
}

// HistogramDef binds a Gateway histogram to its exported name.
type HistogramDef struct {
	ID   walletauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: walletauth.MetricSIWFSuccess, Name: "walletauth_siwf_success_total", Help: "Verified Sign-In With Farcaster attempts."},
	{ID: walletauth.MetricSIWFFailure, Name: "walletauth_siwf_failure_total", Help: "Rejected Sign-In With Farcaster attempts."},
	{ID: walletauth.MetricSIWESuccess, Name: "walletauth_siwe_success_total", Help: "Verified Sign-In With Ethereum attempts."},
	{ID: walletauth.MetricSIWEFailure, Name: "walletauth_siwe_failure_total", Help: "Rejected Sign-In With Ethereum attempts."},
	{ID: walletauth.MetricSignInRateLimited, Name: "walletauth_sign_in_rate_limited_total", Help: "Sign-in attempts refused by the failure throttle."},
	{ID: walletauth.MetricSessionCreated, Name: "walletauth_session_created_total", Help: "Created sessions."},
	{ID: walletauth.MetricSessionExtended, Name: "walletauth_session_extended_total", Help: "Extended sessions."},
	{ID: walletauth.MetricSessionRevoked, Name: "walletauth_session_revoked_total", Help: "Revoked sessions."},
	{ID: walletauth.MetricSessionValidateHit, Name: "walletauth_session_validate_hit_total", Help: "Session lookups that found a live session."},
	{ID: walletauth.MetricSessionValidateMiss, Name: "walletauth_session_validate_miss_total", Help: "Session lookups that found nothing."},
	{ID: walletauth.MetricStoreError, Name: "walletauth_store_error_total", Help: "Backing store failures."},
	{ID: walletauth.MetricPermissionGranted, Name: "walletauth_permission_granted_total", Help: "Permission grants written."},
	{ID: walletauth.MetricPermissionRevoked, Name: "walletauth_permission_revoked_total", Help: "Permission grants deleted."},
	{ID: walletauth.MetricContractSessionCreated, Name: "walletauth_contract_session_created_total", Help: "Contract sessions recorded."},
	{ID: walletauth.MetricContractSessionRevoked, Name: "walletauth_contract_session_revoked_total", Help: "Contract sessions revoked."},
	{ID: walletauth.MetricServiceTokenIssued, Name: "walletauth_service_token_issued_total", Help: "Service tokens signed."},
	{ID: walletauth.MetricServiceTokenRejected, Name: "walletauth_service_token_rejected_total", Help: "Service tokens that failed verification."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: walletauth.MetricValidateLatency, Name: "walletauth_session_lookup_latency_seconds", Help: "Session lookup latency."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const (
	AuditDroppedName = "walletauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the eight Gateway buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
