package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/swarmlab/waggle/internal/board"
	"github.com/swarmlab/waggle/internal/budget"
	"github.com/swarmlab/waggle/internal/conflict"
	"github.com/swarmlab/waggle/internal/decompose"
	"github.com/swarmlab/waggle/internal/graph"
	"github.com/swarmlab/waggle/internal/policy"
	"github.com/swarmlab/waggle/internal/state"
	"github.com/swarmlab/waggle/internal/synth"
	"github.com/swarmlab/waggle/pkg/models"
)

// Plan is the result of decomposing a goal before any execution.
type Plan struct {
	// Goal is the original input.
	Goal string
	// Decomposition holds the parsed subtasks and the parse strategy.
	Decomposition *decompose.Result
	// Graph is the dependency graph over the subtasks.
	Graph *graph.DependencyGraph
	// Conflicts are write-write collisions between subtasks.
	Conflicts []models.Conflict
	// Preflight analyzes path overlaps and achievable parallelism.
	Preflight *conflict.PreflightAnalysis
}

// RunResult is the outcome of a full swarm run.
type RunResult struct {
	// RunID identifies the run, also in the state store.
	RunID string
	// Plan is the executed plan.
	Plan *Plan
	// Outputs are the per-subtask agent outputs, in completion order.
	Outputs []models.AgentOutput
	// Synthesis is the merged final result.
	Synthesis *models.SynthesisResult
	// Failed maps subtask IDs to their final error messages.
	Failed map[string]string
	// Skipped maps subtask IDs that never ran to the reason.
	Skipped map[string]string
	// AbortReason is set when scheduling stopped early.
	AbortReason string
	// TokensUsed is the total tokens consumed by the run.
	TokensUsed int64
}

// WorkerFactory creates a worker for an agent ID. Declared here so the
// orchestrator does not depend on a concrete worker implementation.
type WorkerFactory func(agentID string) Executor

// Executor is the minimal worker contract the run loop needs.
type Executor interface {
	Execute(ctx context.Context, subtask models.Subtask, b *board.Board) (*models.AgentOutput, error)
}

// Orchestrator coordinates one swarm run end to end.
type Orchestrator struct {
	decomposer *decompose.Decomposer
	factory    WorkerFactory
	board      *board.Board
	pol        *policy.Config
	budget     *budget.Handler
	retry      budget.RetryPolicy
	synthz     *synth.Synthesizer
	emitter    *EventEmitter
	logger     *DebugLogger
	db         *state.DB

	taskTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy sets the policy configuration.
func WithPolicy(p *policy.Config) Option {
	return func(o *Orchestrator) { o.pol = p }
}

// WithBudget sets the token budget handler.
func WithBudget(h *budget.Handler) Option {
	return func(o *Orchestrator) { o.budget = h }
}

// WithRetryPolicy sets the per-subtask retry policy.
func WithRetryPolicy(p budget.RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

// WithSynthesizer overrides the default synthesizer.
func WithSynthesizer(s *synth.Synthesizer) Option {
	return func(o *Orchestrator) { o.synthz = s }
}

// WithStateDB enables run persistence.
func WithStateDB(db *state.DB) Option {
	return func(o *Orchestrator) { o.db = db }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithBoard sets a pre-configured shared board.
func WithBoard(b *board.Board) Option {
	return func(o *Orchestrator) { o.board = b }
}

// WithTaskTimeout caps each subtask execution.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.taskTimeout = d }
}

// WithParser overrides the decomposition parser.
func WithParser(planner decompose.Planner, parser *decompose.Parser) Option {
	return func(o *Orchestrator) { o.decomposer = decompose.NewWithParser(planner, parser) }
}

// parserFromPolicy builds a decomposition parser from the parsing policy.
// The policy keyword table maps keyword to type name; the parser takes the
// grouped inverse.
func parserFromPolicy(p policy.ParsingPolicy) *decompose.Parser {
	opts := decompose.Options{
		MinItemLength:     p.MinItemLength,
		MinExtractedItems: p.MinExtractedItems,
	}
	if len(p.TypeKeywords) > 0 {
		kw := make(map[models.SubtaskType][]string, len(p.TypeKeywords))
		for word, typ := range p.TypeKeywords {
			kw[models.SubtaskType(typ)] = append(kw[models.SubtaskType(typ)], word)
		}
		opts.TypeKeywords = kw
	}
	return decompose.NewParserWithOptions(opts)
}

// New creates an orchestrator. The planner produces decomposition responses
// and the factory produces workers; everything else has defaults.
func New(planner decompose.Planner, factory WorkerFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory:     factory,
		pol:         policy.Default(),
		budget:      budget.NewHandler(0),
		retry:       budget.DefaultRetryPolicy(),
		emitter:     NewEventEmitter(100),
		logger:      &DebugLogger{},
		taskTimeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.decomposer == nil {
		o.decomposer = decompose.NewWithParser(planner, parserFromPolicy(o.pol.Parsing))
	}
	if o.board == nil {
		boardOpts := []board.Option{}
		if o.pol.Claims.StrictRelease {
			boardOpts = append(boardOpts, board.WithStrictRelease())
		}
		o.board = board.New(boardOpts...)
	}
	if o.synthz == nil {
		synthOpts := []synth.Option{synth.WithDedupCutoff(o.pol.Synthesis.DedupCutoff)}
		if o.pol.Synthesis.Resolver == "majority" {
			synthOpts = append(synthOpts, synth.WithResolver(synth.MajorityVote{}))
		}
		o.synthz = synth.New(synthOpts...)
	}
	return o
}

// Events returns the orchestrator's event stream.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// Board returns the shared coordination board.
func (o *Orchestrator) Board() *board.Board {
	return o.board
}

// DroppedEventCount returns how many events were dropped under load.
func (o *Orchestrator) DroppedEventCount() uint64 {
	return o.emitter.DroppedCount()
}

// Plan decomposes the goal and builds the dependency graph without running
// anything. A zero-subtask decomposition is reported through ParseError on
// the result, not as an error.
func (o *Orchestrator) Plan(ctx context.Context, goal string) (*Plan, error) {
	dec, err := o.decomposer.Decompose(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("decompose goal: %w", err)
	}

	p := &Plan{
		Goal:          goal,
		Decomposition: dec,
	}
	if len(dec.Subtasks) > 0 {
		p.Graph = graph.Build(dec.Subtasks)
		p.Conflicts = conflict.Detect(dec.Subtasks)
		p.Preflight = conflict.AnalyzePreflight(dec.Subtasks)
	}

	o.logger.Log("plan: %d subtasks via %s, %d conflicts", len(dec.Subtasks), dec.Strategy, len(p.Conflicts))
	return p, nil
}

// Run plans and executes the goal, returning the synthesized result. The
// event stream is closed when Run returns, so consumers ranging over
// Events() terminate; an orchestrator executes at most one run.
func (o *Orchestrator) Run(ctx context.Context, goal string) (*RunResult, error) {
	defer o.emitter.Close()
	o.emit(Event{Type: EventRunStarted, Message: goal})

	plan, err := o.Plan(ctx, goal)
	if err != nil {
		return nil, err
	}
	if plan.Decomposition.ParseError != "" {
		return nil, fmt.Errorf("unusable decomposition: %s", plan.Decomposition.ParseError)
	}

	runID := uuid.New().String()[:8]
	o.emit(Event{Type: EventPlanReady, Message: plan.Decomposition.Strategy})
	o.persistPlan(runID, plan)

	result := o.executeWaves(ctx, runID, plan)

	result.Synthesis = o.synthz.Synthesize(result.Outputs)
	o.emit(Event{Type: EventSynthesisDone, Message: fmt.Sprintf("%d outputs merged, %d conflicts", len(result.Outputs), len(result.Synthesis.Conflicts))})

	used, _, pct := o.budget.Usage()
	result.TokensUsed = used
	o.logger.Log("run %s done: %d ok, %d failed, %d skipped, budget %.0f%%",
		runID, len(result.Outputs), len(result.Failed), len(result.Skipped), pct*100)

	o.persistResult(runID, result)
	o.emit(Event{Type: EventRunDone, TokensUsed: result.TokensUsed})
	return result, nil
}

func (o *Orchestrator) emit(event Event) {
	event.Timestamp = time.Now()
	o.emitter.Emit(event)
}

// persistPlan records the run and its subtasks in the state store.
func (o *Orchestrator) persistPlan(runID string, plan *Plan) {
	if o.db == nil {
		return
	}

	_, tokenBudget, _ := o.budget.Usage()
	run := &state.Run{
		ID:            runID,
		Goal:          plan.Goal,
		ParseStrategy: plan.Decomposition.Strategy,
		TokenBudget:   tokenBudget,
		StartedAt:     time.Now(),
		Status:        state.RunActive,
	}
	if err := o.db.CreateRun(run); err != nil {
		o.logger.Log("persist run: %v", err)
		return
	}

	waveOf := waveIndex(plan.Graph)
	for _, st := range plan.Decomposition.Subtasks {
		rec := &state.SubtaskRecord{
			RunID:       runID,
			ID:          st.ID,
			Description: st.Description,
			Type:        string(st.Type),
			Complexity:  st.Complexity,
			DependsOn:   st.Dependencies,
			Status:      string(models.StatusPending),
			Wave:        waveOf[st.ID],
		}
		if err := o.db.SaveSubtask(rec); err != nil {
			o.logger.Log("persist subtask %s: %v", st.ID, err)
		}
	}
}

// persistResult finalizes the run record and archives board findings.
func (o *Orchestrator) persistResult(runID string, result *RunResult) {
	if o.db == nil {
		return
	}

	for _, f := range o.board.Query(nil) {
		if err := o.db.SaveFinding(runID, f); err != nil {
			o.logger.Log("persist finding %s: %v", f.ID, err)
		}
	}

	status := state.RunCompleted
	if result.AbortReason != "" || len(result.Failed) > 0 {
		status = state.RunFailed
	}
	now := time.Now()
	run := &state.Run{
		ID:            runID,
		ParseStrategy: result.Plan.Decomposition.Strategy,
		TokensUsed:    result.TokensUsed,
		FinishedAt:    &now,
		Status:        status,
	}
	if err := o.db.UpdateRun(run); err != nil {
		o.logger.Log("finalize run: %v", err)
	}
}

// waveIndex maps each subtask ID to its wave number. Cyclic subtasks map
// to -1.
func waveIndex(g *graph.DependencyGraph) map[string]int {
	idx := make(map[string]int)
	if g == nil {
		return idx
	}
	for _, cycle := range g.Cycles {
		for _, id := range cycle {
			idx[id] = -1
		}
	}
	for i, wave := range g.Waves() {
		for _, id := range wave {
			idx[id] = i
		}
	}
	return idx
}
