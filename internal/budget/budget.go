// Package budget enforces token budgets and retry limits on a swarm run.
package budget

import (
	"sync"

	"github.com/swarmlab/waggle/internal/llm"
)

// Status represents the current state of budget consumption.
type Status int

const (
	// StatusOK indicates usage is below the warning threshold.
	StatusOK Status = iota
	// StatusWarning indicates usage is between warning and exhaustion.
	StatusWarning
	// StatusExhausted indicates the budget is fully consumed.
	StatusExhausted
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "Warning"
	case StatusExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// DefaultWarningThreshold is the usage fraction at which warnings begin.
const DefaultWarningThreshold = 0.80

// Handler monitors token usage against a configured budget. When the budget
// is exhausted it blocks new subtask scheduling while running workers are
// allowed to finish.
type Handler struct {
	mu sync.RWMutex

	budget           int64
	used             int64
	tracker          *llm.AggregateTracker
	warningThreshold float64
	exhausted        bool
}

// NewHandler creates a Handler with the specified token budget. A budget of
// zero or less means unlimited.
func NewHandler(budget int64) *Handler {
	return &Handler{
		budget:           budget,
		warningThreshold: DefaultWarningThreshold,
	}
}

// SetTracker attaches an aggregate token tracker. When set, usage is read
// from the tracker instead of the manual counter.
func (h *Handler) SetTracker(tracker *llm.AggregateTracker) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tracker = tracker
}

// Update adds tokens to the usage counter. Used when workers report usage
// directly rather than through a tracker.
func (h *Handler) Update(tokensUsed int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.used += tokensUsed
}

// syncFromTracker refreshes used from the tracker. Caller holds the lock.
func (h *Handler) syncFromTracker() {
	if h.tracker != nil {
		h.used = h.tracker.Usage().TotalTokens
	}
}

// Check returns the current budget status.
func (h *Handler) Check() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.syncFromTracker()

	if h.budget <= 0 {
		return StatusOK
	}

	percentage := float64(h.used) / float64(h.budget)
	if percentage >= 1.0 {
		return StatusExhausted
	}
	if percentage >= h.warningThreshold {
		return StatusWarning
	}
	return StatusOK
}

// Usage returns used tokens, the budget, and the usage fraction.
func (h *Handler) Usage() (used, budget int64, percentage float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.syncFromTracker()

	used = h.used
	budget = h.budget
	if budget > 0 {
		percentage = float64(used) / float64(budget)
	}
	return used, budget, percentage
}

// CanStartNew reports whether new subtasks may be scheduled.
func (h *Handler) CanStartNew() bool {
	return h.Check() != StatusExhausted
}

// OnExhausted marks the budget as exhausted. Idempotent. Running workers
// are never interrupted; only new scheduling is blocked.
func (h *Handler) OnExhausted() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.exhausted = true
}

// IsExhausted reports whether OnExhausted has been called.
func (h *Handler) IsExhausted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.exhausted
}

// SetWarningThreshold sets the warning fraction, clamped to [0, 1].
func (h *Handler) SetWarningThreshold(threshold float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	h.warningThreshold = threshold
}

// Reset clears the usage counter and exhausted flag.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.used = 0
	h.exhausted = false
}
