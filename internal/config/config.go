// Package config handles configuration loading and management for waggle.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/swarmlab/waggle/internal/policy"
)

// Config holds all configuration for waggle.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Parser    ParserConfig    `mapstructure:"parser"`
	Synthesis SynthesisConfig `mapstructure:"synthesis"`
	Claims    ClaimsConfig    `mapstructure:"claims"`
	Retry     RetryConfig     `mapstructure:"retry"`
	State     StateConfig     `mapstructure:"state"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// DefaultsConfig holds default values for swarm runs.
type DefaultsConfig struct {
	MaxWorkers   int           `mapstructure:"max_workers"`
	TokenBudget  int64         `mapstructure:"token_budget"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout"`
	SpawnStagger time.Duration `mapstructure:"spawn_stagger"`
}

// ParserConfig tunes the tolerant decomposition parser.
type ParserConfig struct {
	MinItemLength     int `mapstructure:"min_item_length"`
	MinExtractedItems int `mapstructure:"min_extracted_items"`
}

// SynthesisConfig tunes result merging.
type SynthesisConfig struct {
	DedupCutoff float64 `mapstructure:"dedup_cutoff"`
	Resolver    string  `mapstructure:"resolver"`
}

// ClaimsConfig tunes resource claims on the shared board.
type ClaimsConfig struct {
	StrictRelease     bool     `mapstructure:"strict_release"`
	ProtectedPatterns []string `mapstructure:"protected_patterns"`
	MaxClaimsPerAgent int      `mapstructure:"max_claims_per_agent"`
}

// RetryConfig tunes per-subtask retries.
type RetryConfig struct {
	MaxAttempts   int     `mapstructure:"max_attempts"`
	FailureCutoff float64 `mapstructure:"failure_cutoff"`
}

// StateConfig controls run persistence.
type StateConfig struct {
	// Enabled toggles the SQLite run store.
	Enabled bool `mapstructure:"enabled"`
	// Path overrides the default project-local database path.
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.waggle.yaml in current directory or parent)
// 3. User config (~/.config/waggle/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("defaults.max_workers", cfg.Defaults.MaxWorkers)
	v.Set("defaults.token_budget", cfg.Defaults.TokenBudget)
	v.Set("defaults.task_timeout", cfg.Defaults.TaskTimeout.String())
	v.Set("defaults.spawn_stagger", cfg.Defaults.SpawnStagger.String())
	v.Set("parser.min_item_length", cfg.Parser.MinItemLength)
	v.Set("parser.min_extracted_items", cfg.Parser.MinExtractedItems)
	v.Set("synthesis.dedup_cutoff", cfg.Synthesis.DedupCutoff)
	v.Set("synthesis.resolver", cfg.Synthesis.Resolver)
	v.Set("claims.strict_release", cfg.Claims.StrictRelease)
	v.Set("claims.protected_patterns", cfg.Claims.ProtectedPatterns)
	v.Set("claims.max_claims_per_agent", cfg.Claims.MaxClaimsPerAgent)
	v.Set("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.Set("retry.failure_cutoff", cfg.Retry.FailureCutoff)
	v.Set("state.enabled", cfg.State.Enabled)
	v.Set("state.path", cfg.State.Path)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("defaults.max_workers", 4)
	v.SetDefault("defaults.token_budget", 100000)
	v.SetDefault("defaults.task_timeout", "5m")
	v.SetDefault("defaults.spawn_stagger", "50ms")

	v.SetDefault("parser.min_item_length", 6)
	v.SetDefault("parser.min_extracted_items", 2)

	v.SetDefault("synthesis.dedup_cutoff", 0.7)
	v.SetDefault("synthesis.resolver", "confidence")

	v.SetDefault("claims.strict_release", false)
	v.SetDefault("claims.protected_patterns", []string{".git/", ".env", "secrets"})
	v.SetDefault("claims.max_claims_per_agent", 0)

	v.SetDefault("retry.max_attempts", 2)
	v.SetDefault("retry.failure_cutoff", 0.5)

	v.SetDefault("state.enabled", true)
	v.SetDefault("state.path", "")
}

// getUserConfigDir returns the XDG config directory for waggle.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "waggle")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "waggle")
	}
	return filepath.Join(home, ".config", "waggle")
}

// findProjectConfig searches for .waggle.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".waggle.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			MaxWorkers:   4,
			TokenBudget:  100000,
			TaskTimeout:  5 * time.Minute,
			SpawnStagger: 50 * time.Millisecond,
		},
		Parser: ParserConfig{
			MinItemLength:     6,
			MinExtractedItems: 2,
		},
		Synthesis: SynthesisConfig{
			DedupCutoff: 0.7,
			Resolver:    "confidence",
		},
		Claims: ClaimsConfig{
			ProtectedPatterns: []string{".git/", ".env", "secrets"},
		},
		Retry: RetryConfig{
			MaxAttempts:   2,
			FailureCutoff: 0.5,
		},
		State: StateConfig{
			Enabled: true,
		},
	}
}

// Policy converts the loaded configuration into a validated policy config.
func (c *Config) Policy() (*policy.Config, error) {
	p := policy.Default()

	if c.Parser.MinItemLength > 0 {
		p.Parsing.MinItemLength = c.Parser.MinItemLength
	}
	if c.Parser.MinExtractedItems > 0 {
		p.Parsing.MinExtractedItems = c.Parser.MinExtractedItems
	}
	if c.Synthesis.DedupCutoff > 0 {
		p.Synthesis.DedupCutoff = c.Synthesis.DedupCutoff
	}
	if c.Synthesis.Resolver != "" {
		p.Synthesis.Resolver = c.Synthesis.Resolver
	}
	p.Claims.StrictRelease = c.Claims.StrictRelease
	if len(c.Claims.ProtectedPatterns) > 0 {
		p.Claims.ProtectedPatterns = c.Claims.ProtectedPatterns
	}
	if c.Claims.MaxClaimsPerAgent > 0 {
		p.Claims.MaxClaimsPerAgent = c.Claims.MaxClaimsPerAgent
	}
	if c.Defaults.MaxWorkers > 0 {
		p.Loop.MaxWorkers = c.Defaults.MaxWorkers
	}
	if c.Defaults.SpawnStagger > 0 {
		p.Loop.SpawnStagger = c.Defaults.SpawnStagger
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
