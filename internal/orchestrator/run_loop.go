package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swarmlab/waggle/internal/board"
	"github.com/swarmlab/waggle/internal/budget"
	"github.com/swarmlab/waggle/pkg/models"
)

// claimPollInterval is how often a worker re-attempts a contested claim.
const claimPollInterval = 10 * time.Millisecond

// executeWaves runs the plan wave by wave. Subtasks within a wave run in
// parallel up to the worker limit; a wave is a barrier, so no subtask
// starts before every subtask it depends on has finished.
func (o *Orchestrator) executeWaves(ctx context.Context, runID string, plan *Plan) *RunResult {
	result := &RunResult{
		RunID:   runID,
		Plan:    plan,
		Failed:  make(map[string]string),
		Skipped: make(map[string]string),
	}

	byID := make(map[string]*models.Subtask)
	for _, st := range plan.Decomposition.Subtasks {
		byID[st.ID] = st
	}

	// Subtasks caught in a cycle are never schedulable.
	for _, cycle := range plan.Graph.Cycles {
		for _, id := range cycle {
			if _, seen := result.Skipped[id]; !seen {
				o.skip(result, id, fmt.Sprintf("dependency cycle: %v", cycle))
			}
		}
	}

	monitor := budget.NewFailureMonitor(o.retry)
	waves := plan.Graph.Waves()

	for waveNum, wave := range waves {
		if err := ctx.Err(); err != nil {
			o.skipRemaining(result, waves[waveNum:], byID, "run canceled")
			result.AbortReason = "canceled"
			break
		}
		if !o.budget.CanStartNew() {
			o.budget.OnExhausted()
			o.emit(Event{Type: EventBudgetExhausted, Wave: waveNum})
			o.skipRemaining(result, waves[waveNum:], byID, "token budget exhausted")
			result.AbortReason = "budget exhausted"
			break
		}
		if o.budget.Check() == budget.StatusWarning {
			used, total, _ := o.budget.Usage()
			o.emit(Event{Type: EventBudgetWarning, Wave: waveNum, TokensUsed: used, Message: fmt.Sprintf("%d of %d tokens used", used, total)})
		}
		if monitor.Cascading() {
			o.skipRemaining(result, waves[waveNum:], byID, "cascading failures")
			result.AbortReason = "cascading failures"
			break
		}

		o.emit(Event{Type: EventWaveStarted, Wave: waveNum, Message: fmt.Sprintf("%d subtasks", len(wave))})
		o.runWave(ctx, runID, waveNum, wave, byID, result, monitor)
	}

	return result
}

// runWave executes one wave of independent subtasks.
func (o *Orchestrator) runWave(ctx context.Context, runID string, waveNum int, wave []string, byID map[string]*models.Subtask, result *RunResult, monitor *budget.FailureMonitor) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.pol.Loop.MaxWorkers)

	var mu sync.Mutex

	for i, id := range wave {
		subtask := byID[id]
		if subtask == nil {
			continue
		}

		// A failed or skipped dependency poisons its dependents.
		if reason, blocked := o.blockedBy(subtask, result); blocked {
			o.skip(result, id, reason)
			continue
		}

		if i > 0 && o.pol.Loop.SpawnStagger > 0 {
			time.Sleep(o.pol.Loop.SpawnStagger)
		}

		agentID := fmt.Sprintf("agent-%d-%s", waveNum, id)
		g.Go(func() error {
			output, errMsg := o.runSubtask(gctx, runID, agentID, subtask, monitor)

			mu.Lock()
			defer mu.Unlock()
			if errMsg != "" {
				subtask.Status = models.StatusFailed
				result.Failed[subtask.ID] = errMsg
			} else {
				subtask.Status = models.StatusDone
				result.Outputs = append(result.Outputs, *output)
			}
			return nil
		})
	}

	g.Wait()
}

// blockedBy reports whether a dependency of the subtask failed or was
// skipped, and with what reason.
func (o *Orchestrator) blockedBy(subtask *models.Subtask, result *RunResult) (string, bool) {
	for _, dep := range subtask.Dependencies {
		if msg, ok := result.Failed[dep]; ok {
			return fmt.Sprintf("dependency %s failed: %s", dep, msg), true
		}
		if _, ok := result.Skipped[dep]; ok {
			return fmt.Sprintf("dependency %s was skipped", dep), true
		}
	}
	return "", false
}

// runSubtask executes one subtask with claims and retries. Returns the
// output, or a non-empty error message after all attempts failed.
func (o *Orchestrator) runSubtask(ctx context.Context, runID, agentID string, subtask *models.Subtask, monitor *budget.FailureMonitor) (*models.AgentOutput, string) {
	for _, resource := range subtask.Modifies {
		if !o.pol.AllowResource(resource) {
			o.emit(Event{Type: EventClaimDenied, SubtaskID: subtask.ID, AgentID: agentID, Message: resource})
			monitor.Record(true)
			return nil, fmt.Sprintf("resource %q is protected by policy", resource)
		}
	}
	if limit := o.pol.Claims.MaxClaimsPerAgent; limit > 0 && len(subtask.Modifies) > limit {
		o.emit(Event{Type: EventClaimDenied, SubtaskID: subtask.ID, AgentID: agentID,
			Message: fmt.Sprintf("%d resources, claim limit %d", len(subtask.Modifies), limit)})
		monitor.Record(true)
		return nil, fmt.Sprintf("subtask modifies %d resources, claim limit is %d", len(subtask.Modifies), limit)
	}

	subtask.Status = models.StatusRunning
	o.emit(Event{Type: EventTaskStarted, SubtaskID: subtask.ID, AgentID: agentID})
	o.updateRecord(runID, subtask.ID, string(models.StatusRunning), agentID, "")

	w := o.factory(agentID)

	var lastErr error
	for attempt := 1; ; attempt++ {
		output, err := o.executeOnce(ctx, agentID, w, subtask)
		if err == nil {
			o.emit(Event{Type: EventTaskCompleted, SubtaskID: subtask.ID, AgentID: agentID})
			o.updateRecord(runID, subtask.ID, string(models.StatusDone), agentID, "")
			monitor.Record(false)
			return output, ""
		}

		lastErr = err
		o.logger.Log("subtask %s attempt %d failed: %v", subtask.ID, attempt, err)
		if ctx.Err() != nil || !o.retry.ShouldRetry(attempt) {
			break
		}
		o.emit(Event{Type: EventTaskRetried, SubtaskID: subtask.ID, AgentID: agentID, Error: err})
	}

	o.emit(Event{Type: EventTaskFailed, SubtaskID: subtask.ID, AgentID: agentID, Error: lastErr})
	o.updateRecord(runID, subtask.ID, string(models.StatusFailed), agentID, lastErr.Error())
	monitor.Record(true)
	return nil, lastErr.Error()
}

// executeOnce acquires claims, runs the worker under the task timeout, and
// releases the claims.
func (o *Orchestrator) executeOnce(ctx context.Context, agentID string, w Executor, subtask *models.Subtask) (*models.AgentOutput, error) {
	if err := o.acquireClaims(ctx, agentID, subtask.Modifies); err != nil {
		return nil, err
	}
	defer o.board.ReleaseAll(agentID)

	runCtx := ctx
	if o.taskTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.taskTimeout)
		defer cancel()
	}

	return w.Execute(runCtx, *subtask, o.board)
}

// acquireClaims takes write claims on every resource, releasing partial
// holdings and polling when another agent holds one. Within a wave this
// serializes subtasks whose Modifies sets collide.
func (o *Orchestrator) acquireClaims(ctx context.Context, agentID string, resources []string) error {
	if len(resources) == 0 {
		return nil
	}

	for {
		acquired := 0
		for _, resource := range resources {
			if !o.board.Claim(resource, agentID, board.ModeWrite) {
				break
			}
			acquired++
		}
		if acquired == len(resources) {
			return nil
		}

		// Contention: back off entirely so two agents claiming
		// overlapping sets cannot deadlock.
		o.board.ReleaseAll(agentID)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(claimPollInterval):
		}
	}
}

// skip marks a subtask skipped and emits the event.
func (o *Orchestrator) skip(result *RunResult, id, reason string) {
	result.Skipped[id] = reason
	o.emit(Event{Type: EventTaskSkipped, SubtaskID: id, Message: reason})
	o.updateRecord(result.RunID, id, string(models.StatusFailed), "", reason)
}

// skipRemaining marks every unfinished subtask in the given waves skipped.
func (o *Orchestrator) skipRemaining(result *RunResult, waves [][]string, byID map[string]*models.Subtask, reason string) {
	for _, wave := range waves {
		for _, id := range wave {
			st := byID[id]
			if st == nil || st.Status == models.StatusDone || st.Status == models.StatusFailed {
				continue
			}
			if _, seen := result.Skipped[id]; seen {
				continue
			}
			o.skip(result, id, reason)
		}
	}
}

// updateRecord persists a subtask status change, if persistence is on.
func (o *Orchestrator) updateRecord(runID, id, status, agentID, errMsg string) {
	if o.db == nil || runID == "" {
		return
	}
	if err := o.db.UpdateSubtaskStatus(runID, id, status, agentID, errMsg); err != nil {
		o.logger.Log("update subtask %s: %v", id, err)
	}
}

