package main

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/swarmlab/waggle/internal/config"
	"github.com/swarmlab/waggle/internal/llm"
)

// buildClient creates an Anthropic client from the loaded configuration.
func buildClient(cfg *config.Config) (*llm.Client, error) {
	clientCfg := llm.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if !cfg.Anthropic.UseAWSBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w\n\nSet ANTHROPIC_API_KEY or add anthropic.api_key to %s", err, config.GetUserConfigPath())
		}
		clientCfg.APIKey = key
	}
	return llm.NewClient(clientCfg)
}

// filePlanner satisfies the planner contract by reading a canned
// decomposition response from disk instead of calling the API.
type filePlanner struct {
	path string
}

func (p *filePlanner) Plan(ctx context.Context, prompt string) (string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return "", fmt.Errorf("read plan file: %w", err)
	}
	return string(data), nil
}
