// Package board provides the shared coordination surface workers use while
// executing in parallel: an append-only findings exchange with synchronous
// pub/sub, and a single-writer resource claim registry. A Board is safe for
// concurrent use by any number of workers; it is explicitly constructed and
// passed around so independent orchestration runs never share state.
package board

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swarmlab/waggle/pkg/models"
)

// ClaimMode describes how a claimed resource will be used. The registry is
// single-writer regardless of mode; the mode is recorded for diagnostics.
type ClaimMode string

const (
	// ModeWrite marks a claim made to modify the resource.
	ModeWrite ClaimMode = "write"
	// ModeRead marks a claim made to prevent modification while reading.
	ModeRead ClaimMode = "read"
)

// Filter narrows a Query. Zero-valued fields are ignored; set fields
// compose with AND semantics.
type Filter struct {
	// Topic requires an exact topic match.
	Topic string
	// AgentID requires an exact poster match.
	AgentID string
	// Types requires membership in the given set.
	Types []models.FindingType
}

// SubscriptionConfig registers interest in future findings.
type SubscriptionConfig struct {
	// AgentID identifies the subscriber.
	AgentID string
	// TopicPattern is matched as a substring of each finding's topic.
	// Empty matches every topic.
	TopicPattern string
	// Callback is invoked synchronously for each matching finding. A
	// panicking callback is isolated; other callbacks still run.
	Callback func(models.Finding)
}

type subscription struct {
	id      string
	agentID string
	pattern string
	cb      func(models.Finding)
}

type claim struct {
	agentID   string
	mode      ClaimMode
	claimedAt time.Time
}

// Board is the shared coordination board.
type Board struct {
	mu            sync.Mutex
	findings      []models.Finding
	subscriptions map[string]*subscription
	claims        map[string]claim
	strictRelease bool
}

// Option configures a Board.
type Option func(*Board)

// WithStrictRelease makes Release require the releasing agent to be the
// holder. The default is permissive: any agent may release any claim by
// name, which suits cooperative swarms where a coordinator cleans up after
// a crashed worker.
func WithStrictRelease() Option {
	return func(b *Board) { b.strictRelease = true }
}

// New creates an empty Board.
func New(opts ...Option) *Board {
	b := &Board{
		subscriptions: make(map[string]*subscription),
		claims:        make(map[string]claim),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Post appends a finding and synchronously notifies every matching
// subscription. The finding's ID and timestamp are assigned here; findings
// are immutable once posted.
func (b *Board) Post(agentID, topic, content string, typ models.FindingType, confidence float64) models.Finding {
	f := models.Finding{
		ID:         uuid.New().String(),
		AgentID:    agentID,
		Topic:      topic,
		Content:    content,
		Type:       typ,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}

	b.mu.Lock()
	b.findings = append(b.findings, f)
	// Snapshot subscriptions so a callback unsubscribing itself (or
	// subscribing a new listener) cannot corrupt this iteration.
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, s := range b.subscriptions {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		if s.pattern != "" && !strings.Contains(f.Topic, s.pattern) {
			continue
		}
		notify(s.cb, f)
	}
	return f
}

// notify runs one callback, swallowing a panic so one broken listener
// cannot prevent the rest from running or poison board state.
func notify(cb func(models.Finding), f models.Finding) {
	defer func() { _ = recover() }()
	cb(f)
}

// Query returns findings matching the filter, in post order. A nil filter
// returns all findings.
func (b *Board) Query(filter *Filter) []models.Finding {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []models.Finding
	for _, f := range b.findings {
		if filter != nil {
			if filter.Topic != "" && f.Topic != filter.Topic {
				continue
			}
			if filter.AgentID != "" && f.AgentID != filter.AgentID {
				continue
			}
			if len(filter.Types) > 0 && !containsType(filter.Types, f.Type) {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

func containsType(types []models.FindingType, t models.FindingType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// Subscribe registers a callback for future findings and returns the
// subscription ID used to unsubscribe.
func (b *Board) Subscribe(cfg SubscriptionConfig) string {
	id := uuid.New().String()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[id] = &subscription{
		id:      id,
		agentID: cfg.AgentID,
		pattern: cfg.TopicPattern,
		cb:      cfg.Callback,
	}
	return id
}

// Unsubscribe removes a subscription. Unknown IDs are a no-op.
func (b *Board) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscriptions, id)
}

// Claim attempts to take the single-writer lock on a resource. It returns
// true when the resource was unclaimed or already held by the same agent
// (idempotent re-claim), and false with no state change when a different
// agent holds it. The check and the take happen under one lock, so two
// concurrent claims on the same resource can never both succeed.
func (b *Board) Claim(resource, agentID string, mode ClaimMode) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.claims[resource]; ok {
		return existing.agentID == agentID
	}
	b.claims[resource] = claim{agentID: agentID, mode: mode, claimedAt: time.Now()}
	return true
}

// Release clears a claim and reports whether anything was released. In the
// default permissive mode any agent may release any claim; with
// WithStrictRelease only the holder may.
func (b *Board) Release(resource, agentID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.claims[resource]
	if !ok {
		return false
	}
	if b.strictRelease && existing.agentID != agentID {
		return false
	}
	delete(b.claims, resource)
	return true
}

// IsClaimed reports whether any agent holds the resource.
func (b *Board) IsClaimed(resource string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.claims[resource]
	return ok
}

// Holder returns the agent holding the resource and true, or ("", false)
// when the resource is unclaimed.
func (b *Board) Holder(resource string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.claims[resource]
	if !ok {
		return "", false
	}
	return c.agentID, true
}

// ReleaseAll clears every claim held by the agent and returns how many
// were released.
func (b *Board) ReleaseAll(agentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	released := 0
	for resource, c := range b.claims {
		if c.agentID == agentID {
			delete(b.claims, resource)
			released++
		}
	}
	return released
}

// FindingCount returns how many findings have been posted.
func (b *Board) FindingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.findings)
}

// Reset wipes findings, subscriptions, and claims. This is the only
// operation that removes findings.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.findings = nil
	b.subscriptions = make(map[string]*subscription)
	b.claims = make(map[string]claim)
}
