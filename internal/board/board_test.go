package board

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/swarmlab/waggle/pkg/models"
)

func TestPostAssignsIDAndTimestamp(t *testing.T) {
	b := New()
	f := b.Post("agent-1", "auth", "sessions use JWTs", models.FindingDiscovery, 0.9)

	if f.ID == "" {
		t.Error("expected generated finding ID")
	}
	if f.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if b.FindingCount() != 1 {
		t.Errorf("expected 1 finding, got %d", b.FindingCount())
	}
}

func TestQueryFiltersComposeWithAND(t *testing.T) {
	b := New()
	b.Post("agent-1", "auth", "first", models.FindingDiscovery, 0.9)
	b.Post("agent-2", "auth", "second", models.FindingAnalysis, 0.8)
	b.Post("agent-1", "storage", "third", models.FindingDiscovery, 0.7)

	all := b.Query(nil)
	if len(all) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(all))
	}
	// Post order is preserved.
	if all[0].Content != "first" || all[2].Content != "third" {
		t.Errorf("findings out of post order: %v", all)
	}

	byTopic := b.Query(&Filter{Topic: "auth"})
	if len(byTopic) != 2 {
		t.Errorf("expected 2 auth findings, got %d", len(byTopic))
	}

	combined := b.Query(&Filter{
		Topic:   "auth",
		AgentID: "agent-1",
		Types:   []models.FindingType{models.FindingDiscovery},
	})
	if len(combined) != 1 || combined[0].Content != "first" {
		t.Errorf("AND filter failed: %v", combined)
	}

	none := b.Query(&Filter{Topic: "auth", AgentID: "agent-3"})
	if len(none) != 0 {
		t.Errorf("expected no findings, got %v", none)
	}
}

func TestSubscribeReceivesMatchingFindings(t *testing.T) {
	b := New()

	var got []models.Finding
	b.Subscribe(SubscriptionConfig{
		AgentID:      "listener",
		TopicPattern: "auth",
		Callback:     func(f models.Finding) { got = append(got, f) },
	})

	b.Post("agent-1", "auth/login", "matches substring", models.FindingDiscovery, 0.9)
	b.Post("agent-1", "storage", "does not match", models.FindingDiscovery, 0.9)

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].Content != "matches substring" {
		t.Errorf("wrong finding delivered: %+v", got[0])
	}
}

func TestSubscribeWithoutPatternMatchesEverything(t *testing.T) {
	b := New()

	count := 0
	b.Subscribe(SubscriptionConfig{
		AgentID:  "listener",
		Callback: func(models.Finding) { count++ },
	})

	b.Post("a", "x", "one", models.FindingDiscovery, 1)
	b.Post("a", "y", "two", models.FindingDiscovery, 1)

	if count != 2 {
		t.Errorf("expected 2 notifications, got %d", count)
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	b := New()

	count := 0
	id := b.Subscribe(SubscriptionConfig{
		Callback: func(models.Finding) { count++ },
	})

	b.Post("a", "t", "before", models.FindingDiscovery, 1)
	b.Unsubscribe(id)
	b.Post("a", "t", "after", models.FindingDiscovery, 1)

	if count != 1 {
		t.Errorf("expected 1 notification, got %d", count)
	}
}

func TestListenerUnsubscribingItselfMidNotification(t *testing.T) {
	b := New()

	var id string
	fired := 0
	id = b.Subscribe(SubscriptionConfig{
		Callback: func(models.Finding) {
			fired++
			b.Unsubscribe(id)
		},
	})
	other := 0
	b.Subscribe(SubscriptionConfig{
		Callback: func(models.Finding) { other++ },
	})

	b.Post("a", "t", "first", models.FindingDiscovery, 1)
	b.Post("a", "t", "second", models.FindingDiscovery, 1)

	if fired != 1 {
		t.Errorf("self-unsubscribing listener fired %d times, expected 1", fired)
	}
	if other != 2 {
		t.Errorf("surviving listener fired %d times, expected 2", other)
	}
}

func TestPanickingListenerDoesNotBlockOthers(t *testing.T) {
	b := New()

	b.Subscribe(SubscriptionConfig{
		Callback: func(models.Finding) { panic("broken listener") },
	})
	delivered := false
	b.Subscribe(SubscriptionConfig{
		Callback: func(models.Finding) { delivered = true },
	})

	b.Post("a", "t", "content", models.FindingDiscovery, 1)

	if !delivered {
		t.Error("healthy listener was not notified")
	}
	if b.FindingCount() != 1 {
		t.Error("board state corrupted by panicking listener")
	}
}

func TestClaimSemantics(t *testing.T) {
	b := New()

	if !b.Claim("src/auth.go", "A", ModeWrite) {
		t.Fatal("first claim should succeed")
	}
	if b.Claim("src/auth.go", "B", ModeWrite) {
		t.Error("claim by B should fail while A holds the resource")
	}
	if !b.Claim("src/auth.go", "A", ModeWrite) {
		t.Error("re-claim by the holder should succeed")
	}
	if !b.IsClaimed("src/auth.go") {
		t.Error("resource should be claimed")
	}

	if !b.Release("src/auth.go", "A") {
		t.Error("release of a held claim should report true")
	}
	if b.Release("src/auth.go", "A") {
		t.Error("release of an unclaimed resource should report false")
	}
	if !b.Claim("src/auth.go", "B", ModeWrite) {
		t.Error("claim by B should succeed after release")
	}
}

func TestPermissiveReleaseByNonHolder(t *testing.T) {
	b := New()
	b.Claim("r", "A", ModeWrite)

	if !b.Release("r", "B") {
		t.Error("permissive mode should let any agent release")
	}
	if b.IsClaimed("r") {
		t.Error("resource should be unclaimed after release")
	}
}

func TestStrictReleaseRequiresHolder(t *testing.T) {
	b := New(WithStrictRelease())
	b.Claim("r", "A", ModeWrite)

	if b.Release("r", "B") {
		t.Error("strict mode should reject release by non-holder")
	}
	if !b.IsClaimed("r") {
		t.Error("claim should survive rejected release")
	}
	if !b.Release("r", "A") {
		t.Error("holder release should succeed")
	}
}

func TestReleaseAll(t *testing.T) {
	b := New()
	b.Claim("r1", "A", ModeWrite)
	b.Claim("r2", "A", ModeWrite)
	b.Claim("r3", "B", ModeWrite)

	if n := b.ReleaseAll("A"); n != 2 {
		t.Errorf("expected 2 released, got %d", n)
	}
	if b.IsClaimed("r1") || b.IsClaimed("r2") {
		t.Error("A's claims should be gone")
	}
	if !b.IsClaimed("r3") {
		t.Error("B's claim should survive")
	}
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	b := New()

	const workers = 32
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			if b.Claim("contested", string(rune('a'+n)), ModeWrite) {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 winning claim, got %d", wins.Load())
	}
}

func TestConcurrentPostAndQuery(t *testing.T) {
	b := New()

	const posters = 8
	const perPoster = 50
	var wg sync.WaitGroup
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perPoster; j++ {
				b.Post("agent", "topic", "c", models.FindingDiscovery, 1)
				b.Query(&Filter{Topic: "topic"})
			}
		}(i)
	}
	wg.Wait()

	if b.FindingCount() != posters*perPoster {
		t.Errorf("expected %d findings, got %d", posters*perPoster, b.FindingCount())
	}
}

func TestResetWipesEverything(t *testing.T) {
	b := New()
	b.Post("a", "t", "c", models.FindingDiscovery, 1)
	b.Claim("r", "a", ModeWrite)

	b.Reset()

	if b.FindingCount() != 0 {
		t.Error("findings should be wiped")
	}
	if b.IsClaimed("r") {
		t.Error("claims should be wiped")
	}
}
