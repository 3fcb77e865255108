package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/swarmlab/waggle/internal/state"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show recent swarm runs",
	Long: `List recent runs from the state database, or show the subtasks of a
single run when a run id is given.

Looks for a project database under .waggle/ first and falls back to the
global one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatusCmd,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of runs to list")
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	db, err := openStateDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 1 {
		return printRunDetail(db, args[0])
	}
	return printRunList(db)
}

// openStateDB prefers the project-local database when one exists.
func openStateDB() (*state.DB, error) {
	cwd, err := os.Getwd()
	if err == nil {
		projectPath := state.ProjectDBPath(cwd)
		if _, statErr := os.Stat(projectPath); statErr == nil {
			db, openErr := state.Open(projectPath)
			if openErr == nil {
				if migErr := db.Migrate(); migErr != nil {
					db.Close()
					return nil, migErr
				}
				return db, nil
			}
		}
	}
	db, err := state.OpenGlobal()
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func printRunList(db *state.DB) error {
	runs, err := db.ListRuns(statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	fmt.Printf("Recent runs (%s):\n\n", db.Path())
	for _, r := range runs {
		goal := r.Goal
		if len(goal) > 60 {
			goal = goal[:57] + "..."
		}
		fmt.Printf("  %s  %s  %s\n", r.ID, statusLabel(string(r.Status)), goal)
		fmt.Printf("      started %s", r.StartedAt.Local().Format("2006-01-02 15:04"))
		if r.FinishedAt != nil {
			fmt.Printf(", took %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
		}
		if r.TokensUsed > 0 {
			fmt.Printf(", %d tokens", r.TokensUsed)
		}
		fmt.Println()
	}
	return nil
}

func printRunDetail(db *state.DB, runID string) error {
	run, err := db.GetRun(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run with id %q", runID)
	}
	fmt.Printf("Run %s  %s\n", run.ID, statusLabel(string(run.Status)))
	fmt.Printf("Goal: %s\n", run.Goal)
	fmt.Printf("Parse strategy: %s\n", run.ParseStrategy)
	if run.TokenBudget > 0 {
		fmt.Printf("Tokens: %d / %d\n", run.TokensUsed, run.TokenBudget)
	} else if run.TokensUsed > 0 {
		fmt.Printf("Tokens: %d\n", run.TokensUsed)
	}

	subtasks, err := db.GetSubtasks(runID)
	if err != nil {
		return err
	}
	if len(subtasks) == 0 {
		return nil
	}
	fmt.Println("\nSubtasks:")
	wave := -2
	for _, st := range subtasks {
		if st.Wave != wave {
			wave = st.Wave
			if wave < 0 {
				color.Yellow("  (unscheduled)")
			} else {
				color.Cyan("  wave %d", wave)
			}
		}
		fmt.Printf("    %s %s  %s\n", statusMark(st.Status), st.ID, st.Description)
		if st.Error != "" {
			fmt.Printf("        %s\n", color.RedString(st.Error))
		}
	}
	return nil
}

func statusLabel(status string) string {
	switch status {
	case "completed":
		return color.GreenString(status)
	case "failed", "canceled":
		return color.RedString(status)
	case "interrupted":
		return color.YellowString(status)
	default:
		return color.CyanString(status)
	}
}

func statusMark(status string) string {
	switch status {
	case "completed":
		return color.GreenString("✓")
	case "failed":
		return color.RedString("✗")
	case "skipped":
		return color.YellowString("-")
	default:
		return "·"
	}
}
