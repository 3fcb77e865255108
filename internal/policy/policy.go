// Package policy defines configurable policy parameters for swarm behavior.
// This centralizes threshold values that would otherwise be scattered across
// implementation files, enabling configuration and testing.
package policy

import (
	"fmt"
	"strings"
	"time"
)

// Config contains all configurable policy parameters for a swarm run.
type Config struct {
	// Parsing policies
	Parsing ParsingPolicy

	// Claim policies
	Claims ClaimPolicy

	// Synthesis policies
	Synthesis SynthesisPolicy

	// Loop policies
	Loop LoopPolicy
}

// ParsingPolicy controls the tolerant decomposition parser.
type ParsingPolicy struct {
	// MinItemLength is the shortest line accepted as an extracted subtask.
	MinItemLength int

	// MinExtractedItems is how many items natural-language extraction must
	// find before its result is preferred over the single-task fallback.
	MinExtractedItems int

	// TypeKeywords maps keywords to subtask type names for classification
	// of extracted items. Empty means the built-in vocabulary.
	TypeKeywords map[string]string
}

// ClaimPolicy controls resource claims on the shared board.
type ClaimPolicy struct {
	// StrictRelease makes releasing an unheld resource an error instead
	// of a no-op.
	StrictRelease bool

	// ProtectedPatterns are resource path fragments no agent may claim.
	ProtectedPatterns []string

	// MaxClaimsPerAgent caps concurrent claims held by one agent.
	// Zero means unlimited.
	MaxClaimsPerAgent int
}

// SynthesisPolicy controls merging of agent outputs.
type SynthesisPolicy struct {
	// DedupCutoff is the similarity score at or above which two findings
	// are considered duplicates.
	DedupCutoff float64

	// Resolver names the conflict resolution strategy:
	// "confidence" or "majority".
	Resolver string
}

// LoopPolicy controls scheduling behavior.
type LoopPolicy struct {
	// MaxWorkers caps the number of subtasks running concurrently.
	MaxWorkers int

	// SpawnStagger is the delay between starting parallel workers.
	SpawnStagger time.Duration
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Parsing: ParsingPolicy{
			MinItemLength:     6,
			MinExtractedItems: 2,
		},
		Claims: ClaimPolicy{
			ProtectedPatterns: []string{
				".git/", ".env", "secrets",
			},
		},
		Synthesis: SynthesisPolicy{
			DedupCutoff: 0.7,
			Resolver:    "confidence",
		},
		Loop: LoopPolicy{
			MaxWorkers:   4,
			SpawnStagger: 50 * time.Millisecond,
		},
	}
}

// Validate checks policy values and clamps out-of-range ones to defaults.
func (c *Config) Validate() error {
	if c.Parsing.MinItemLength < 1 {
		c.Parsing.MinItemLength = 6
	}
	if c.Parsing.MinExtractedItems < 1 {
		c.Parsing.MinExtractedItems = 2
	}
	if c.Synthesis.DedupCutoff <= 0 || c.Synthesis.DedupCutoff > 1 {
		c.Synthesis.DedupCutoff = 0.7
	}
	switch c.Synthesis.Resolver {
	case "", "confidence", "majority":
	default:
		return fmt.Errorf("unknown synthesis resolver %q", c.Synthesis.Resolver)
	}
	if c.Loop.MaxWorkers < 1 {
		c.Loop.MaxWorkers = 4
	}
	if c.Loop.SpawnStagger < 0 {
		c.Loop.SpawnStagger = 50 * time.Millisecond
	}
	if c.Claims.MaxClaimsPerAgent < 0 {
		c.Claims.MaxClaimsPerAgent = 0
	}
	return nil
}

// AllowResource reports whether a resource may be claimed under this policy.
// Matching is by substring against the protected patterns.
func (c *Config) AllowResource(resource string) bool {
	for _, pattern := range c.Claims.ProtectedPatterns {
		if pattern == "" {
			continue
		}
		if strings.Contains(resource, pattern) {
			return false
		}
	}
	return true
}
