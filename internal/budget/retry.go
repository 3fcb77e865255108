package budget

import "sync"

// RetryPolicy controls per-subtask retries and the run-wide failure cutoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per subtask, including
	// the first. Values below 1 are treated as 1.
	MaxAttempts int
	// FailureCutoff is the fraction of failed subtasks at which the run
	// aborts instead of retrying further. Zero disables the cutoff.
	FailureCutoff float64
	// MinSamples is how many subtasks must finish before the cutoff is
	// evaluated, so one early failure cannot abort a large run.
	MinSamples int
}

// DefaultRetryPolicy matches the standard run configuration.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   2,
		FailureCutoff: 0.5,
		MinSamples:    4,
	}
}

// ShouldRetry reports whether another attempt is allowed after the given
// number of completed attempts.
func (p RetryPolicy) ShouldRetry(attempts int) bool {
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}
	return attempts < max
}

// FailureMonitor tracks subtask outcomes and detects cascading failure.
type FailureMonitor struct {
	mu       sync.Mutex
	policy   RetryPolicy
	finished int
	failed   int
}

// NewFailureMonitor creates a monitor with the given policy.
func NewFailureMonitor(policy RetryPolicy) *FailureMonitor {
	return &FailureMonitor{policy: policy}
}

// Record notes one finished subtask.
func (m *FailureMonitor) Record(failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.finished++
	if failed {
		m.failed++
	}
}

// Cascading reports whether the failure rate has crossed the cutoff.
func (m *FailureMonitor) Cascading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.policy.FailureCutoff <= 0 {
		return false
	}
	if m.finished < m.policy.MinSamples {
		return false
	}
	return float64(m.failed)/float64(m.finished) >= m.policy.FailureCutoff
}

// Counts returns finished and failed totals.
func (m *FailureMonitor) Counts() (finished, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.finished, m.failed
}
