package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "waggle",
	Short: "Multi-agent swarm coordinator",
	Long: `Waggle decomposes a goal into subtasks, schedules them across parallel
worker agents, and merges the results into one answer.

Core capabilities:
- Tolerant parsing of model-produced task decompositions
- Dependency-graph scheduling with cycle detection
- A shared findings board with exclusive resource claims
- Conflict-aware synthesis of agent outputs`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
