// Package orchestrator coordinates the swarm: it plans the run, schedules
// subtasks wave by wave, mediates resource claims, and synthesizes results.
package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a swarm run has started.
	EventRunStarted EventType = "run_started"
	// EventPlanReady indicates decomposition and graph construction finished.
	EventPlanReady EventType = "plan_ready"
	// EventWaveStarted indicates a scheduling wave has begun.
	EventWaveStarted EventType = "wave_started"
	// EventTaskStarted indicates a subtask has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a subtask completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a subtask failed after all retries.
	EventTaskFailed EventType = "task_failed"
	// EventTaskRetried indicates a subtask attempt failed and will be retried.
	EventTaskRetried EventType = "task_retried"
	// EventTaskSkipped indicates a subtask was never scheduled, because of
	// a dependency cycle, a failed dependency, or budget exhaustion.
	EventTaskSkipped EventType = "task_skipped"
	// EventClaimDenied indicates a protected resource claim was refused.
	EventClaimDenied EventType = "claim_denied"
	// EventBudgetWarning indicates token usage crossed the warning threshold.
	EventBudgetWarning EventType = "budget_warning"
	// EventBudgetExhausted indicates the token budget is spent.
	EventBudgetExhausted EventType = "budget_exhausted"
	// EventSynthesisDone indicates outputs were merged into a final result.
	EventSynthesisDone EventType = "synthesis_done"
	// EventRunDone indicates the entire run is complete.
	EventRunDone EventType = "run_done"
)

// Event represents an event emitted by the orchestrator. Events drive CLI
// progress output and run logging.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// SubtaskID is the ID of the related subtask, if applicable.
	SubtaskID string
	// AgentID is the ID of the related agent, if applicable.
	AgentID string
	// Wave is the scheduling wave index, if applicable.
	Wave int
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// TokensUsed is the current total tokens used.
	TokensUsed int64
}
