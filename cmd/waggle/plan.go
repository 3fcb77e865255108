package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/swarmlab/waggle/internal/config"
	"github.com/swarmlab/waggle/internal/decompose"
	"github.com/swarmlab/waggle/internal/orchestrator"
	"github.com/swarmlab/waggle/pkg/models"
)

var (
	planFromFile string
	planFormat   string
)

var planCmd = &cobra.Command{
	Use:   "plan <goal>",
	Short: "Decompose a goal without executing it",
	Long: `Decompose a goal into subtasks and show the resulting schedule.

The plan includes the parse strategy used, the dependency waves, detected
write-write conflicts, and any dangling dependency references.

Examples:
  waggle plan "Build a REST API with auth and tests"
  waggle plan --from-file response.json "ignored goal"
  waggle plan --format yaml "Refactor the billing module"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlanCmd,
}

func init() {
	planCmd.Flags().StringVar(&planFromFile, "from-file", "", "Parse a saved decomposition response instead of calling the API")
	planCmd.Flags().StringVar(&planFormat, "format", "text", "Output format: text, json, or yaml")
}

func runPlanCmd(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pol, err := cfg.Policy()
	if err != nil {
		return err
	}

	var planner decompose.Planner
	if planFromFile != "" {
		planner = &filePlanner{path: planFromFile}
	} else {
		client, err := buildClient(cfg)
		if err != nil {
			return err
		}
		planner = client
	}

	o := orchestrator.New(planner, nil, orchestrator.WithPolicy(pol))
	plan, err := o.Plan(cmd.Context(), goal)
	if err != nil {
		return err
	}

	switch planFormat {
	case "json":
		return printPlanJSON(cmd, plan)
	case "yaml":
		return printPlanYAML(cmd, plan)
	case "text":
		printPlanText(plan)
		return nil
	default:
		return fmt.Errorf("unknown format %q", planFormat)
	}
}

// planView is the serializable form of a plan for json/yaml output.
type planView struct {
	Goal       string           `json:"goal" yaml:"goal"`
	Strategy   string           `json:"strategy" yaml:"strategy"`
	Reasoning  string           `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	ParseError string           `json:"parse_error,omitempty" yaml:"parse_error,omitempty"`
	Subtasks   []models.Subtask `json:"subtasks" yaml:"subtasks"`
	Waves      [][]string       `json:"waves,omitempty" yaml:"waves,omitempty"`
	Cycles     [][]string       `json:"cycles,omitempty" yaml:"cycles,omitempty"`
	Conflicts  []string         `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
}

func buildPlanView(plan *orchestrator.Plan) planView {
	view := planView{
		Goal:       plan.Goal,
		Strategy:   plan.Decomposition.Strategy,
		Reasoning:  plan.Decomposition.Reasoning,
		ParseError: plan.Decomposition.ParseError,
	}
	for _, st := range plan.Decomposition.Subtasks {
		view.Subtasks = append(view.Subtasks, *st)
	}
	if plan.Graph != nil {
		view.Waves = plan.Graph.Waves()
		view.Cycles = plan.Graph.Cycles
	}
	for _, c := range plan.Conflicts {
		view.Conflicts = append(view.Conflicts, fmt.Sprintf("%s: %s and %s", c.Resource, c.SubtaskIDs[0], c.SubtaskIDs[1]))
	}
	return view
}

func printPlanJSON(cmd *cobra.Command, plan *orchestrator.Plan) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(buildPlanView(plan))
}

func printPlanYAML(cmd *cobra.Command, plan *orchestrator.Plan) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(buildPlanView(plan))
}

func printPlanText(plan *orchestrator.Plan) {
	dec := plan.Decomposition

	if dec.ParseError != "" {
		color.Red("✗ Could not derive any subtasks: %s", dec.ParseError)
		return
	}

	fmt.Printf("%s %s\n", color.GreenString("✓"), color.New(color.Bold).Sprintf("%d subtasks", len(dec.Subtasks)))
	fmt.Printf("  strategy: %s\n", dec.Strategy)
	if dec.Reasoning != "" {
		fmt.Printf("  note: %s\n", dec.Reasoning)
	}
	fmt.Println()

	for i, wave := range plan.Graph.Waves() {
		fmt.Printf("%s\n", color.CyanString("wave %d", i))
		for _, id := range wave {
			st := findSubtask(dec.Subtasks, id)
			if st == nil {
				continue
			}
			deps := ""
			if len(st.Dependencies) > 0 {
				deps = fmt.Sprintf("  (after %s)", strings.Join(st.Dependencies, ", "))
			}
			fmt.Printf("  %s [%s/%d] %s%s\n", st.ID, st.Type, st.Complexity, st.Description, deps)
		}
	}

	for _, cycle := range plan.Graph.Cycles {
		color.Yellow("⚠ dependency cycle: %s", strings.Join(cycle, " → "))
	}
	for _, ref := range plan.Graph.MissingRefs {
		color.Yellow("⚠ %s depends on unknown subtask %q", ref.SubtaskID, ref.DependencyID)
	}
	for _, c := range plan.Conflicts {
		color.Yellow("⚠ %s and %s both modify %s", c.SubtaskIDs[0], c.SubtaskIDs[1], c.Resource)
	}
	if plan.Preflight != nil && len(dec.Subtasks) > 1 {
		fmt.Printf("\nmax parallelism: %d of %d\n", plan.Preflight.MaxParallelism, len(dec.Subtasks))
	}
}

func findSubtask(subtasks []*models.Subtask, id string) *models.Subtask {
	for _, st := range subtasks {
		if st.ID == id {
			return st
		}
	}
	return nil
}
