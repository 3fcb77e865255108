package decompose

import (
	"context"
	"fmt"
)

// Planner produces a raw planning response for a goal. The production
// implementation calls the Anthropic API; tests substitute canned text.
// The parser has no dependency on how the text was produced.
type Planner interface {
	Plan(ctx context.Context, prompt string) (string, error)
}

// Decomposer turns a high-level goal into subtasks by prompting a planner
// and parsing whatever comes back.
type Decomposer struct {
	planner Planner
	parser  *Parser
}

// New creates a Decomposer with the given planner and a default parser.
func New(planner Planner) *Decomposer {
	return &Decomposer{planner: planner, parser: NewParser()}
}

// NewWithParser creates a Decomposer with a custom-configured parser.
func NewWithParser(planner Planner, parser *Parser) *Decomposer {
	return &Decomposer{planner: planner, parser: parser}
}

// Decompose prompts the planner with the goal and parses the response.
// Planner transport failures are returned as errors; malformed planner
// output is not an error and degrades inside Parse instead.
func (d *Decomposer) Decompose(ctx context.Context, goal string) (*Result, error) {
	raw, err := d.planner.Plan(ctx, fmt.Sprintf(decompositionPrompt, goal))
	if err != nil {
		return nil, fmt.Errorf("plan goal: %w", err)
	}
	return d.parser.Parse(raw), nil
}
