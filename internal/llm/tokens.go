package llm

import (
	"sync"
)

// ModelPricing contains pricing per 1M tokens for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultModelPricing contains pricing for known Claude models.
var DefaultModelPricing = map[string]ModelPricing{
	"claude-opus-4-5-20251101":   {InputPerMillion: 15.00, OutputPerMillion: 75.00},
	"claude-sonnet-4-20250514":   {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-7-sonnet-20250219": {InputPerMillion: 3.00, OutputPerMillion: 15.00},
	"claude-3-5-haiku-20241022":  {InputPerMillion: 0.80, OutputPerMillion: 4.00},
}

// TokenUsage represents aggregated token usage.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// TokenTracker accumulates API-reported token counts for one client.
type TokenTracker struct {
	mu    sync.RWMutex
	usage TokenUsage
	calls int

	model   string
	pricing *ModelPricing
}

// NewTokenTracker creates a tracker. The model name selects default pricing.
func NewTokenTracker(model string) *TokenTracker {
	return &TokenTracker{model: model}
}

// Add records token usage from one API response.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage.InputTokens += input
	t.usage.OutputTokens += output
	t.usage.TotalTokens = t.usage.InputTokens + t.usage.OutputTokens
	t.calls++
}

// Usage returns the accumulated token usage.
func (t *TokenTracker) Usage() TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.usage
}

// Calls returns the number of API calls recorded.
func (t *TokenTracker) Calls() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.calls
}

// SetPricing overrides the default pricing for cost calculation.
func (t *TokenTracker) SetPricing(pricing ModelPricing) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pricing = &pricing
}

// Cost calculates the accumulated cost in dollars based on model pricing.
// Unknown models cost zero.
func (t *TokenTracker) Cost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pricing := t.pricing
	if pricing == nil {
		if p, ok := DefaultModelPricing[t.model]; ok {
			pricing = &p
		}
	}
	if pricing == nil {
		return 0.0
	}

	inputCost := float64(t.usage.InputTokens) / 1_000_000 * pricing.InputPerMillion
	outputCost := float64(t.usage.OutputTokens) / 1_000_000 * pricing.OutputPerMillion
	return inputCost + outputCost
}

// Reset clears all accumulated usage.
func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage = TokenUsage{}
	t.calls = 0
}

// AggregateTracker combines usage across multiple workers.
type AggregateTracker struct {
	mu       sync.RWMutex
	trackers map[string]*TokenTracker
}

// NewAggregateTracker creates an empty aggregate tracker.
func NewAggregateTracker() *AggregateTracker {
	return &AggregateTracker{trackers: make(map[string]*TokenTracker)}
}

// Add registers a tracker under a worker ID.
func (a *AggregateTracker) Add(workerID string, tracker *TokenTracker) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.trackers[workerID] = tracker
}

// Get returns the tracker for a worker ID, or nil.
func (a *AggregateTracker) Get(workerID string) *TokenTracker {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.trackers[workerID]
}

// Usage returns the combined usage across all registered trackers.
func (a *AggregateTracker) Usage() TokenUsage {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var total TokenUsage
	for _, t := range a.trackers {
		u := t.Usage()
		total.InputTokens += u.InputTokens
		total.OutputTokens += u.OutputTokens
		total.TotalTokens += u.TotalTokens
	}
	return total
}

// Cost returns the combined cost across all registered trackers.
func (a *AggregateTracker) Cost() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var total float64
	for _, t := range a.trackers {
		total += t.Cost()
	}
	return total
}

// Count returns the number of registered trackers.
func (a *AggregateTracker) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.trackers)
}
