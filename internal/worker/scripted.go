package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/swarmlab/waggle/internal/board"
	"github.com/swarmlab/waggle/pkg/models"
)

// ScriptedResult describes what a scripted worker should do for one subtask.
type ScriptedResult struct {
	Output   *models.AgentOutput
	Findings []models.Finding
	Err      error
	// Delay is slept before returning, to exercise scheduling in tests.
	Delay time.Duration
}

// ScriptedWorker returns canned results keyed by subtask ID. Subtasks with
// no script produce an echo output, so dry runs work without any setup.
type ScriptedWorker struct {
	agentID string

	mu       sync.Mutex
	scripts  map[string]ScriptedResult
	executed []string
}

// NewScriptedWorker creates a scripted worker for an agent ID.
func NewScriptedWorker(agentID string) *ScriptedWorker {
	return &ScriptedWorker{
		agentID: agentID,
		scripts: make(map[string]ScriptedResult),
	}
}

// NewScriptedFactory returns a Factory producing scripted workers that share
// one script table. Configure scripts on the returned worker.
func NewScriptedFactory() (*ScriptedWorker, Factory) {
	shared := NewScriptedWorker("")
	return shared, func(agentID string) Worker {
		return &agentView{agentID: agentID, shared: shared}
	}
}

// Script registers the result for a subtask ID.
func (w *ScriptedWorker) Script(subtaskID string, result ScriptedResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scripts[subtaskID] = result
}

// Executed returns the subtask IDs executed so far, in completion order.
func (w *ScriptedWorker) Executed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.executed...)
}

// Execute returns the scripted result for the subtask, or an echo output.
func (w *ScriptedWorker) Execute(ctx context.Context, subtask models.Subtask, b *board.Board) (*models.AgentOutput, error) {
	return w.executeAs(ctx, w.agentID, subtask, b)
}

func (w *ScriptedWorker) executeAs(ctx context.Context, agentID string, subtask models.Subtask, b *board.Board) (*models.AgentOutput, error) {
	w.mu.Lock()
	script, ok := w.scripts[subtask.ID]
	w.mu.Unlock()

	if ok && script.Delay > 0 {
		select {
		case <-time.After(script.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w.mu.Lock()
	w.executed = append(w.executed, subtask.ID)
	w.mu.Unlock()

	if !ok {
		out := &models.AgentOutput{
			AgentID:    agentID,
			Content:    fmt.Sprintf("completed: %s", subtask.Description),
			Type:       string(subtask.Type),
			Confidence: 1.0,
		}
		return out, nil
	}
	if script.Err != nil {
		return nil, script.Err
	}

	for _, f := range script.Findings {
		b.Post(agentID, f.Topic, f.Content, f.Type, f.Confidence)
	}

	out := script.Output
	if out == nil {
		out = &models.AgentOutput{
			Content:    fmt.Sprintf("completed: %s", subtask.Description),
			Type:       string(subtask.Type),
			Confidence: 1.0,
		}
	} else {
		copied := *out
		out = &copied
	}
	out.AgentID = agentID
	return out, nil
}

// agentView binds a shared script table to a specific agent ID.
type agentView struct {
	agentID string
	shared  *ScriptedWorker
}

func (v *agentView) Execute(ctx context.Context, subtask models.Subtask, b *board.Board) (*models.AgentOutput, error) {
	return v.shared.executeAs(ctx, v.agentID, subtask, b)
}
