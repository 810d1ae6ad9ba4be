package authcore

import "sync/atomic"

// MetricID identifies one of the engine's in-process counters.
type MetricID uint8

const (
	// MetricRegisterSuccess is incremented on each created account.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate is incremented on duplicate-email registrations.
	MetricRegisterDuplicate
	// MetricLoginSuccess is incremented on each successful login.
	MetricLoginSuccess
	// MetricLoginFailure is incremented on each rejected login.
	MetricLoginFailure
	// MetricAccountLocked is incremented when a failed login trips the lockout.
	MetricAccountLocked
	// MetricRefreshSuccess is incremented on each session rotation.
	MetricRefreshSuccess
	// MetricRefreshFailure is incremented on each rejected refresh.
	MetricRefreshFailure
	// MetricLogout is incremented on each revoked session.
	MetricLogout
	// MetricEmailVerified is incremented on each consumed verification token.
	MetricEmailVerified
	// MetricPasswordResetRequest is incremented per issued reset token.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess is incremented per consumed reset token.
	MetricPasswordResetSuccess
	// MetricPasswordChangeSuccess is incremented per in-session password change.
	MetricPasswordChangeSuccess
	// MetricMailSent is incremented per delivered email.
	MetricMailSent
	// MetricMailFailed is incremented per failed or dropped email.
	MetricMailFailed

	metricIDCount
)

// Metrics holds lock-free counters. All operations are allocation-free on
// the write path.
type Metrics struct {
	counters [metricIDCount]atomic.Uint64
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc atomically increments the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot map[MetricID]uint64

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	out := make(MetricsSnapshot, metricIDCount)
	if m == nil {
		return out
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		out[id] = m.counters[id].Load()
	}
	return out
}
