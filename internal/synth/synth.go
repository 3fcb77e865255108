// Package synth reconciles the outputs of parallel workers into one
// coherent result. It detects file-level write-write conflicts, resolves
// them through a pluggable strategy, and deduplicates near-identical
// findings across outputs. Synthesis never fails: conflicts are reported
// alongside a best-effort merged output, so callers can surface them for
// review without losing a usable result.
package synth

import (
	"fmt"
	"strings"

	"github.com/swarmlab/waggle/pkg/models"
)

// Candidate is one agent's proposed content for a contested resource.
type Candidate struct {
	// AgentID identifies the proposing agent.
	AgentID string
	// Content is the proposed resource content.
	Content string
	// Confidence is the agent's confidence in its output.
	Confidence float64
	// Order is the candidate's first-seen position, used for tie-breaks.
	Order int
}

// Resolver selects the winning candidate for a contested resource. The
// strategy is a policy point: confidence weighting is the default, but
// majority vote or manual escalation can be substituted.
type Resolver interface {
	Resolve(resource string, candidates []Candidate) (Candidate, string)
}

// ConfidenceWeighted prefers the candidate with the highest confidence,
// breaking ties by first-seen order.
type ConfidenceWeighted struct{}

// Resolve implements Resolver.
func (ConfidenceWeighted) Resolve(resource string, candidates []Candidate) (Candidate, string) {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best, fmt.Sprintf("confidence-weighted: %s at %.2f", best.AgentID, best.Confidence)
}

// MajorityVote prefers the content proposed by the most candidates,
// falling back to confidence and then first-seen order on ties.
type MajorityVote struct{}

// Resolve implements Resolver.
func (MajorityVote) Resolve(resource string, candidates []Candidate) (Candidate, string) {
	votes := make(map[string]int)
	for _, c := range candidates {
		votes[c.Content]++
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		switch {
		case votes[c.Content] > votes[best.Content]:
			best = c
		case votes[c.Content] == votes[best.Content] && c.Confidence > best.Confidence:
			best = c
		}
	}
	return best, fmt.Sprintf("majority vote: %d of %d for %s", votes[best.Content], len(candidates), best.AgentID)
}

// Synthesizer merges agent outputs. Synthesizers are stateless and safe
// for concurrent use.
type Synthesizer struct {
	resolver    Resolver
	dedupCutoff float64
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithResolver substitutes the conflict-resolution strategy.
func WithResolver(r Resolver) Option {
	return func(s *Synthesizer) { s.resolver = r }
}

// WithDedupCutoff sets the similarity score at or above which two findings
// are considered duplicates. The default is 0.7; it is a heuristic knob,
// not an invariant.
func WithDedupCutoff(cutoff float64) Option {
	return func(s *Synthesizer) { s.dedupCutoff = cutoff }
}

// New creates a Synthesizer with confidence-weighted resolution.
func New(opts ...Option) *Synthesizer {
	s := &Synthesizer{
		resolver:    ConfidenceWeighted{},
		dedupCutoff: 0.7,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize merges the outputs of all workers into one result. A single
// output passes through unchanged with zero conflicts; multiple outputs
// are merged with file-level conflict resolution and finding dedup.
func (s *Synthesizer) Synthesize(outputs []models.AgentOutput) *models.SynthesisResult {
	result := &models.SynthesisResult{
		Stats: models.SynthesisStats{InputCount: len(outputs)},
	}
	if len(outputs) == 0 {
		return result
	}
	if len(outputs) == 1 {
		only := outputs[0]
		result.Output = only.Content
		result.Findings = append(result.Findings, only.Findings...)
		result.Files = append(result.Files, only.FilesModified...)
		return result
	}

	result.Output = s.mergeContent(outputs)
	result.Files, result.Conflicts = s.mergeFiles(outputs)
	result.Findings, result.Stats.DeduplicationRate = s.dedupFindings(outputs)
	return result
}

// mergeContent concatenates each output's content in first-seen order,
// attributed per agent so the merged text stays reviewable.
func (s *Synthesizer) mergeContent(outputs []models.AgentOutput) string {
	var sections []string
	for _, out := range outputs {
		if strings.TrimSpace(out.Content) == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("[%s] %s", out.AgentID, out.Content))
	}
	return strings.Join(sections, "\n\n")
}

// mergeFiles groups file changes by path, resolving write-write collisions
// (same path, different content) through the configured resolver. Agents
// writing identical content to the same path are not in conflict.
func (s *Synthesizer) mergeFiles(outputs []models.AgentOutput) ([]models.FileChange, []models.SynthesisConflict) {
	type group struct {
		candidates []Candidate
		changes    []models.FileChange
	}
	var paths []string
	groups := make(map[string]*group)

	order := 0
	for _, out := range outputs {
		for _, change := range out.FilesModified {
			g, ok := groups[change.Path]
			if !ok {
				g = &group{}
				groups[change.Path] = g
				paths = append(paths, change.Path)
			}
			g.candidates = append(g.candidates, Candidate{
				AgentID:    out.AgentID,
				Content:    change.NewContent,
				Confidence: out.Confidence,
				Order:      order,
			})
			g.changes = append(g.changes, change)
			order++
		}
	}

	var files []models.FileChange
	var conflicts []models.SynthesisConflict
	for _, path := range paths {
		g := groups[path]
		if !contested(g.candidates) {
			files = append(files, g.changes[0])
			continue
		}

		winner, reason := s.resolver.Resolve(path, g.candidates)
		agentIDs := make([]string, 0, len(g.candidates))
		for _, c := range g.candidates {
			agentIDs = append(agentIDs, c.AgentID)
		}
		conflicts = append(conflicts, models.SynthesisConflict{
			Resource: path,
			AgentIDs: agentIDs,
			WinnerID: winner.AgentID,
			Reason:   reason,
		})

		// The winning agent's change is carried whole, so the recorded
		// change type matches the content that won.
		merged := g.changes[0]
		for i, c := range g.candidates {
			if c.Order == winner.Order {
				merged = g.changes[i]
				break
			}
		}
		files = append(files, merged)
	}
	return files, conflicts
}

// contested reports whether the candidates disagree on content.
func contested(candidates []Candidate) bool {
	for _, c := range candidates[1:] {
		if c.Content != candidates[0].Content {
			return true
		}
	}
	return false
}

// dedupFindings folds near-duplicate findings across outputs, keeping the
// first occurrence of each, and returns the deduplication rate.
func (s *Synthesizer) dedupFindings(outputs []models.AgentOutput) ([]string, float64) {
	var kept []string
	var keptNorm []string
	total := 0

	for _, out := range outputs {
		for _, finding := range out.Findings {
			total++
			norm := normalizeText(finding)
			dup := false
			for _, existing := range keptNorm {
				if similarity(norm, existing) >= s.dedupCutoff {
					dup = true
					break
				}
			}
			if !dup {
				kept = append(kept, finding)
				keptNorm = append(keptNorm, norm)
			}
		}
	}

	if total == 0 {
		return kept, 0
	}
	return kept, float64(total-len(kept)) / float64(total)
}
