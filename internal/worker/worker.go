// Package worker defines the contract swarm workers fulfill and the
// built-in Claude-backed and scripted implementations.
package worker

import (
	"context"

	"github.com/swarmlab/waggle/internal/board"
	"github.com/swarmlab/waggle/pkg/models"
)

// Worker executes a single subtask. Implementations read and post findings
// on the shared board and return a structured output for synthesis.
type Worker interface {
	Execute(ctx context.Context, subtask models.Subtask, b *board.Board) (*models.AgentOutput, error)
}

// Factory creates a worker for an agent ID. The orchestrator calls it once
// per scheduled subtask so implementations may return per-agent state.
type Factory func(agentID string) Worker
