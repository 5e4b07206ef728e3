package internaldefs

import (
	goSession "github.com/MrEthical07/goSession"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricRestoreOptimistic, Name: "gosession_restore_optimistic_total", Help: "Persisted sessions published before validation."},
	{ID: goSession.MetricRestoreFederated, Name: "gosession_restore_federated_total", Help: "Startups that fell through to federated observation."},
	{ID: goSession.MetricValidateSuccess, Name: "gosession_validate_success_total", Help: "Token validations accepted by the backend."},
	{ID: goSession.MetricValidateExpired, Name: "gosession_validate_expired_total", Help: "Token validations that invalidated the session."},
	{ID: goSession.MetricValidateKept, Name: "gosession_validate_kept_total", Help: "Inconclusive validations that kept the session."},
	{ID: goSession.MetricValidateStale, Name: "gosession_validate_stale_total", Help: "Validation results dropped because the session changed."},
	{ID: goSession.MetricLoginUserSuccess, Name: "gosession_login_user_success_total", Help: "Successful end-user logins."},
	{ID: goSession.MetricLoginUserFailure, Name: "gosession_login_user_failure_total", Help: "Failed end-user logins."},
	{ID: goSession.MetricLoginAdminSuccess, Name: "gosession_login_admin_success_total", Help: "Successful admin logins."},
	{ID: goSession.MetricLoginAdminFailure, Name: "gosession_login_admin_failure_total", Help: "Failed admin logins."},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Login attempts refused by the throttle."},
	{ID: goSession.MetricFederatedAdmitted, Name: "gosession_federated_admitted_total", Help: "Federated identities admitted by the watcher."},
	{ID: goSession.MetricFederatedSignedOut, Name: "gosession_federated_signed_out_total", Help: "Federated sessions ended by a provider sign-out."},
	{ID: goSession.MetricFederatedBlocked, Name: "gosession_federated_blocked_total", Help: "Federated identities refused by the directory."},
	{ID: goSession.MetricDirectoryMissing, Name: "gosession_directory_missing_total", Help: "Directory lookups without a record."},
	{ID: goSession.MetricDirectoryUnavailable, Name: "gosession_directory_unavailable_total", Help: "Directory lookups that failed."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout operations."},
	{ID: goSession.MetricStoreFailure, Name: "gosession_store_failure_total", Help: "Session store operations that failed."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricValidateLatency, Name: "gosession_validate_latency_seconds", Help: "Token validation round-trip latency."},
}

// Statuses are the label values of the session status gauge.
var Statuses = []goSession.Status{
	goSession.StatusUnresolved,
	goSession.StatusRestoring,
	goSession.StatusActive,
	goSession.StatusUnauthenticated,
}

// Sources are the label values of the session source gauge.
var Sources = []goSession.AuthSource{
	goSession.SourceAPIToken,
	goSession.SourceFederated,
}

const (
	StatusGaugeName  = "gosession_session_status"
	StatusGaugeHelp  = "Current session status; 1 for the current value."
	SourceGaugeName  = "gosession_session_source"
	SourceGaugeHelp  = "Identity source of the current session; 1 for the current value."
	AuditDroppedName = "gosession_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// Indicator returns 1 when match holds, else 0.
func Indicator(match bool) int64 {
	if match {
		return 1
	}
	return 0
}

// HistogramBounds are the upper bounds, in seconds, of the latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket for exporters without label support.
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

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
