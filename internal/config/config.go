// Package config holds the YAML-backed service configuration with
// environment overrides for the settings that differ per deployment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all chatbi configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Dataset   DatasetConfig   `yaml:"dataset"`
	LLM       LLMConfig       `yaml:"llm"`
	Execution ExecutionConfig `yaml:"execution"`
	Limits    LimitsConfig    `yaml:"limits"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatasetConfig locates the tabular source and names the tokens that
// mark a column as numeric for coercion at load time.
type DatasetConfig struct {
	Path          string   `yaml:"path"`
	NumericTokens []string `yaml:"numeric_tokens"`
}

// LLMConfig configures the model gateway.
type LLMConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	RouterModel  string `yaml:"router_model"`  // fast: classification, narration
	PlannerModel string `yaml:"planner_model"` // strong: code synthesis, final insight
	Timeout      string `yaml:"timeout"`
	RetryBase    string `yaml:"retry_base"`
	MaxAttempts  int    `yaml:"max_attempts"`
}

// ExecutionConfig configures the sandbox and angle pacing.
type ExecutionConfig struct {
	SandboxTimeout string `yaml:"sandbox_timeout"`
	AnglePacing    string `yaml:"angle_pacing"` // delay between analysis angles
}

// LimitsConfig caps row counts and history depth.
type LimitsConfig struct {
	PreviewRows  int `yaml:"preview_rows"`
	ExportRows   int `yaml:"export_rows"`
	HistoryTurns int `yaml:"history_turns"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Dir        string          `yaml:"dir"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "chatbi",
		Version: "1.0.0",

		Dataset: DatasetConfig{
			Path:          "data/dataset.csv",
			NumericTokens: nil, // dataset package supplies its defaults
		},

		LLM: LLMConfig{
			BaseURL:      "https://generativelanguage.googleapis.com/v1beta",
			RouterModel:  "gemini-2.0-flash",
			PlannerModel: "gemini-3-pro-preview",
			Timeout:      "120s",
			RetryBase:    "5s",
			MaxAttempts:  3,
		},

		Execution: ExecutionConfig{
			SandboxTimeout: "30s",
			AnglePacing:    "2s",
		},

		Limits: LimitsConfig{
			PreviewRows:  500,
			ExportRows:   5000,
			HistoryTurns: 3,
		},

		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			Dir:       "logs",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// API key (check in priority order)
	if key := os.Getenv("CHATBI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	} else if key := os.Getenv("GENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}

	if path := os.Getenv("CHATBI_DATASET"); path != "" {
		c.Dataset.Path = path
	}
	if port := os.Getenv("CHATBI_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks the settings a running service cannot do without.
func (c *Config) Validate() error {
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset path is required")
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm max_attempts must be at least 1")
	}
	if c.Limits.PreviewRows < 1 || c.Limits.ExportRows < 1 {
		return fmt.Errorf("row limits must be positive")
	}
	return nil
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetRetryBase returns the backoff base as a duration.
func (c *Config) GetRetryBase() time.Duration {
	d, err := time.ParseDuration(c.LLM.RetryBase)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetSandboxTimeout returns the sandbox execution timeout as a duration.
func (c *Config) GetSandboxTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.SandboxTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetAnglePacing returns the delay between analysis angles.
func (c *Config) GetAnglePacing() time.Duration {
	d, err := time.ParseDuration(c.Execution.AnglePacing)
	if err != nil {
		return 2 * time.Second
	}
	return d
}
