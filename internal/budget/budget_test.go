package budget

import (
	"testing"

	"github.com/swarmlab/waggle/internal/llm"
)

func TestHandlerThresholds(t *testing.T) {
	h := NewHandler(1000)

	if got := h.Check(); got != StatusOK {
		t.Errorf("Check() at 0%% = %v, want OK", got)
	}

	h.Update(799)
	if got := h.Check(); got != StatusOK {
		t.Errorf("Check() at 79.9%% = %v, want OK", got)
	}

	h.Update(1) // 800 total
	if got := h.Check(); got != StatusWarning {
		t.Errorf("Check() at 80%% = %v, want Warning", got)
	}

	h.Update(200) // 1000 total
	if got := h.Check(); got != StatusExhausted {
		t.Errorf("Check() at 100%% = %v, want Exhausted", got)
	}
	if h.CanStartNew() {
		t.Error("CanStartNew() = true at exhaustion, want false")
	}
}

func TestHandlerUnlimited(t *testing.T) {
	h := NewHandler(0)
	h.Update(1 << 40)

	if got := h.Check(); got != StatusOK {
		t.Errorf("Check() with no budget = %v, want OK", got)
	}
	if _, _, pct := h.Usage(); pct != 0 {
		t.Errorf("Usage() percentage = %f, want 0 for unlimited", pct)
	}
}

func TestHandlerTrackerSync(t *testing.T) {
	agg := llm.NewAggregateTracker()
	tr := llm.NewTokenTracker("claude-sonnet-4-20250514")
	tr.Add(600, 300)
	agg.Add("worker-1", tr)

	h := NewHandler(1000)
	h.SetTracker(agg)

	used, budget, pct := h.Usage()
	if used != 900 || budget != 1000 {
		t.Errorf("Usage() = %d/%d, want 900/1000", used, budget)
	}
	if pct != 0.9 {
		t.Errorf("percentage = %f, want 0.9", pct)
	}
	if got := h.Check(); got != StatusWarning {
		t.Errorf("Check() = %v, want Warning", got)
	}
}

func TestHandlerExhaustedIdempotent(t *testing.T) {
	h := NewHandler(100)
	h.OnExhausted()
	h.OnExhausted()
	if !h.IsExhausted() {
		t.Error("IsExhausted() = false after OnExhausted")
	}

	h.Reset()
	if h.IsExhausted() {
		t.Error("IsExhausted() = true after Reset")
	}
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2}
	if !p.ShouldRetry(1) {
		t.Error("ShouldRetry(1) = false with MaxAttempts 2")
	}
	if p.ShouldRetry(2) {
		t.Error("ShouldRetry(2) = true with MaxAttempts 2")
	}

	zero := RetryPolicy{}
	if zero.ShouldRetry(1) {
		t.Error("ShouldRetry(1) = true with zero policy, want single attempt")
	}
}

func TestFailureMonitorCascading(t *testing.T) {
	m := NewFailureMonitor(RetryPolicy{FailureCutoff: 0.5, MinSamples: 4})

	m.Record(true)
	m.Record(true)
	if m.Cascading() {
		t.Error("Cascading() = true below MinSamples")
	}

	m.Record(false)
	m.Record(true) // 3 failed of 4
	if !m.Cascading() {
		t.Error("Cascading() = false at 75 percent failure rate")
	}

	finished, failed := m.Counts()
	if finished != 4 || failed != 3 {
		t.Errorf("Counts() = %d/%d, want 4 finished, 3 failed", finished, failed)
	}
}

func TestFailureMonitorDisabledCutoff(t *testing.T) {
	m := NewFailureMonitor(RetryPolicy{})
	for i := 0; i < 10; i++ {
		m.Record(true)
	}
	if m.Cascading() {
		t.Error("Cascading() = true with cutoff disabled")
	}
}
