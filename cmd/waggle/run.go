package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/swarmlab/waggle/internal/budget"
	"github.com/swarmlab/waggle/internal/config"
	"github.com/swarmlab/waggle/internal/decompose"
	"github.com/swarmlab/waggle/internal/llm"
	"github.com/swarmlab/waggle/internal/orchestrator"
	"github.com/swarmlab/waggle/internal/state"
	"github.com/swarmlab/waggle/internal/worker"
)

var (
	runDryRun     bool
	runFromFile   string
	runMaxWorkers int
	runBudget     int64
	runNoState    bool
	runVerbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Run a swarm against a goal",
	Long: `Decompose the goal, execute the subtasks with parallel workers, and
print the synthesized result.

Workers share a findings board and take exclusive claims on the resources
they modify, so subtasks that touch the same files never run concurrently.

Examples:
  waggle run "Add rate limiting to the API gateway"
  waggle run --dry-run "Exercise the scheduler without API calls"
  waggle run --max-workers 2 --budget 50000 "Refactor the parser"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRunCmd,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Use scripted echo workers instead of the API")
	runCmd.Flags().StringVar(&runFromFile, "from-file", "", "Parse a saved decomposition response instead of calling the API")
	runCmd.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "Override the configured worker limit")
	runCmd.Flags().Int64Var(&runBudget, "budget", 0, "Override the configured token budget")
	runCmd.Flags().BoolVar(&runNoState, "no-state", false, "Skip run persistence")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Print every orchestrator event")
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if runMaxWorkers > 0 {
		cfg.Defaults.MaxWorkers = runMaxWorkers
	}
	if runBudget > 0 {
		cfg.Defaults.TokenBudget = runBudget
	}
	pol, err := cfg.Policy()
	if err != nil {
		return err
	}

	var planner decompose.Planner
	var factory orchestrator.WorkerFactory
	var client *llm.Client

	switch {
	case runDryRun:
		_, wf := worker.NewScriptedFactory()
		planner = dryRunPlanner(goal)
		factory = func(agentID string) orchestrator.Executor { return wf(agentID) }
	default:
		client, err = buildClient(cfg)
		if err != nil {
			return err
		}
		planner = client
		wf := worker.NewClaudeFactory(client)
		factory = func(agentID string) orchestrator.Executor { return wf(agentID) }
	}
	if runFromFile != "" {
		planner = &filePlanner{path: runFromFile}
	}

	handler := budget.NewHandler(cfg.Defaults.TokenBudget)
	if client != nil {
		agg := llm.NewAggregateTracker()
		agg.Add("shared", client.Tracker())
		handler.SetTracker(agg)
	}

	opts := []orchestrator.Option{
		orchestrator.WithPolicy(pol),
		orchestrator.WithBudget(handler),
		orchestrator.WithRetryPolicy(budget.RetryPolicy{
			MaxAttempts:   cfg.Retry.MaxAttempts,
			FailureCutoff: cfg.Retry.FailureCutoff,
			MinSamples:    4,
		}),
		orchestrator.WithTaskTimeout(cfg.Defaults.TaskTimeout),
	}

	cwd, _ := os.Getwd()
	if cwd != "" {
		opts = append(opts, orchestrator.WithLogger(orchestrator.NewDebugLoggerForProject(cwd)))
	}
	if cfg.State.Enabled && !runNoState {
		dbPath := cfg.State.Path
		if dbPath == "" {
			dbPath = state.ProjectDBPath(cwd)
		}
		db, err := state.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open state db: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate state db: %w", err)
		}
		opts = append(opts, orchestrator.WithStateDB(db))
	}

	o := orchestrator.New(planner, factory, opts...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range o.Events() {
			printEvent(ev)
		}
	}()

	// Run closes the event stream on return, ending the printer goroutine.
	result, err := o.Run(cmd.Context(), goal)
	<-done
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

// dryRunPlanner fabricates a small decomposition so the scheduler can be
// exercised without an API key.
func dryRunPlanner(goal string) decompose.Planner {
	response := fmt.Sprintf(`{
		"subtasks": [
			{"id": "survey", "description": "Survey: %[1]s", "type": "research", "complexity": 2},
			{"id": "build", "description": "Build: %[1]s", "type": "implement", "complexity": 5, "dependencies": ["survey"]},
			{"id": "verify", "description": "Verify: %[1]s", "type": "test", "complexity": 3, "dependencies": ["build"]}
		]
	}`, goal)
	return &staticPlanner{response: response}
}

type staticPlanner struct {
	response string
}

func (p *staticPlanner) Plan(ctx context.Context, prompt string) (string, error) {
	return p.response, nil
}

func printEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventPlanReady:
		fmt.Printf("%s plan ready (%s)\n", color.GreenString("✓"), ev.Message)
	case orchestrator.EventWaveStarted:
		color.Cyan("wave %d: %s", ev.Wave, ev.Message)
	case orchestrator.EventTaskCompleted:
		fmt.Printf("  %s %s\n", color.GreenString("✓"), ev.SubtaskID)
	case orchestrator.EventTaskFailed:
		fmt.Printf("  %s %s: %v\n", color.RedString("✗"), ev.SubtaskID, ev.Error)
	case orchestrator.EventTaskSkipped:
		fmt.Printf("  %s %s: %s\n", color.YellowString("-"), ev.SubtaskID, ev.Message)
	case orchestrator.EventBudgetWarning:
		color.Yellow("⚠ budget warning: %s", ev.Message)
	case orchestrator.EventBudgetExhausted:
		color.Red("✗ token budget exhausted, stopping new subtasks")
	default:
		if runVerbose {
			fmt.Printf("  [%s] %s %s\n", ev.Type, ev.SubtaskID, ev.Message)
		}
	}
}

var summaryStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("63")).
	Padding(0, 1)

func printResult(result *orchestrator.RunResult) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s\n", result.RunID)
	fmt.Fprintf(&sb, "subtasks: %d ok, %d failed, %d skipped\n",
		len(result.Outputs), len(result.Failed), len(result.Skipped))
	if result.Synthesis != nil {
		fmt.Fprintf(&sb, "findings kept after dedup: %d (rate %.0f%%)\n",
			len(result.Synthesis.Findings), result.Synthesis.Stats.DeduplicationRate*100)
		for _, c := range result.Synthesis.Conflicts {
			fmt.Fprintf(&sb, "conflict on %s: kept %s (%s)\n", c.Resource, c.WinnerID, c.Reason)
		}
	}
	if result.AbortReason != "" {
		fmt.Fprintf(&sb, "aborted: %s\n", result.AbortReason)
	}
	if result.TokensUsed > 0 {
		fmt.Fprintf(&sb, "tokens used: %d\n", result.TokensUsed)
	}
	fmt.Println(summaryStyle.Render(strings.TrimRight(sb.String(), "\n")))

	if result.Synthesis != nil && result.Synthesis.Output != "" {
		fmt.Println()
		fmt.Println(result.Synthesis.Output)
	}
}
