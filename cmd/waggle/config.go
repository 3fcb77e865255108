package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/swarmlab/waggle/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfigCmd,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default user config file",
	RunE:  runConfigInitCmd,
}

func init() {
	configCmd.AddCommand(configInitCmd)
}

func runConfigCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println("Config files:")
	printConfigPath("user", config.GetUserConfigPath())
	printConfigPath("project", config.GetProjectConfigPath())
	fmt.Println()

	key, keyErr := config.GetAPIKey(cfg)
	if keyErr != nil {
		fmt.Printf("API key:        %s\n", color.YellowString("not set"))
	} else {
		fmt.Printf("API key:        %s\n", config.MaskAPIKey(key))
	}
	fmt.Printf("Model:          %s\n", cfg.Anthropic.Model)
	if cfg.Anthropic.UseAWSBedrock {
		fmt.Printf("Backend:        AWS Bedrock (region %s)\n", cfg.Anthropic.AWSRegion)
	}
	fmt.Printf("Max workers:    %d\n", cfg.Defaults.MaxWorkers)
	fmt.Printf("Token budget:   %d\n", cfg.Defaults.TokenBudget)
	fmt.Printf("Task timeout:   %s\n", cfg.Defaults.TaskTimeout)
	fmt.Printf("Resolver:       %s\n", cfg.Synthesis.Resolver)
	fmt.Printf("Dedup cutoff:   %.2f\n", cfg.Synthesis.DedupCutoff)
	fmt.Printf("Strict release: %v\n", cfg.Claims.StrictRelease)
	fmt.Printf("State:          enabled=%v\n", cfg.State.Enabled)
	return nil
}

func runConfigInitCmd(cmd *cobra.Command, args []string) error {
	path := config.GetUserConfigPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	if err := config.Save(config.Default()); err != nil {
		return err
	}
	fmt.Printf("%s wrote %s\n", color.GreenString("✓"), path)
	fmt.Println("Set your API key with the ANTHROPIC_API_KEY environment variable,")
	fmt.Println("or add it under anthropic.api_key in the config file.")
	return nil
}

func printConfigPath(label, path string) {
	if path == "" {
		fmt.Printf("  %-8s %s\n", label, color.YellowString("(none)"))
		return
	}
	marker := color.YellowString("(missing)")
	if _, err := os.Stat(path); err == nil {
		marker = color.GreenString("(present)")
	}
	fmt.Printf("  %-8s %s %s\n", label, path, marker)
}
