package llm

import (
	"math"
	"sync"
	"testing"
)

func TestTokenTrackerAdd(t *testing.T) {
	tracker := NewTokenTracker("claude-sonnet-4-20250514")

	tracker.Add(1000, 500)
	tracker.Add(200, 100)

	usage := tracker.Usage()
	if usage.InputTokens != 1200 {
		t.Errorf("InputTokens = %d, want 1200", usage.InputTokens)
	}
	if usage.OutputTokens != 600 {
		t.Errorf("OutputTokens = %d, want 600", usage.OutputTokens)
	}
	if usage.TotalTokens != 1800 {
		t.Errorf("TotalTokens = %d, want 1800", usage.TotalTokens)
	}
	if tracker.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", tracker.Calls())
	}
}

func TestTokenTrackerCost(t *testing.T) {
	tracker := NewTokenTracker("claude-sonnet-4-20250514")
	tracker.Add(1_000_000, 1_000_000)

	// $3/1M input + $15/1M output.
	if got := tracker.Cost(); math.Abs(got-18.0) > 1e-9 {
		t.Errorf("Cost() = %f, want 18.0", got)
	}
}

func TestTokenTrackerUnknownModelCostsZero(t *testing.T) {
	tracker := NewTokenTracker("some-future-model")
	tracker.Add(1_000_000, 1_000_000)

	if got := tracker.Cost(); got != 0.0 {
		t.Errorf("Cost() = %f, want 0.0", got)
	}

	tracker.SetPricing(ModelPricing{InputPerMillion: 1.0, OutputPerMillion: 2.0})
	if got := tracker.Cost(); math.Abs(got-3.0) > 1e-9 {
		t.Errorf("Cost() after SetPricing = %f, want 3.0", got)
	}
}

func TestTokenTrackerReset(t *testing.T) {
	tracker := NewTokenTracker("claude-sonnet-4-20250514")
	tracker.Add(100, 50)
	tracker.Reset()

	if usage := tracker.Usage(); usage.TotalTokens != 0 {
		t.Errorf("TotalTokens after Reset = %d, want 0", usage.TotalTokens)
	}
	if tracker.Calls() != 0 {
		t.Errorf("Calls() after Reset = %d, want 0", tracker.Calls())
	}
}

func TestTokenTrackerConcurrentAdd(t *testing.T) {
	tracker := NewTokenTracker("claude-sonnet-4-20250514")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.Add(1, 1)
			}
		}()
	}
	wg.Wait()

	if usage := tracker.Usage(); usage.TotalTokens != 2000 {
		t.Errorf("TotalTokens = %d, want 2000", usage.TotalTokens)
	}
}

func TestAggregateTracker(t *testing.T) {
	agg := NewAggregateTracker()

	t1 := NewTokenTracker("claude-sonnet-4-20250514")
	t1.Add(100, 50)
	t2 := NewTokenTracker("claude-sonnet-4-20250514")
	t2.Add(200, 100)

	agg.Add("worker-1", t1)
	agg.Add("worker-2", t2)

	if agg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", agg.Count())
	}
	usage := agg.Usage()
	if usage.InputTokens != 300 || usage.OutputTokens != 150 {
		t.Errorf("Usage() = %+v, want 300 in / 150 out", usage)
	}
	if agg.Get("worker-1") != t1 {
		t.Error("Get(worker-1) did not return registered tracker")
	}
	if agg.Get("missing") != nil {
		t.Error("Get(missing) should return nil")
	}
}
