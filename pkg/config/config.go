// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = ".refactord/config.yaml"

const (
	ProviderOllama = "ollama"
	ProviderStub   = "stub"
	ProviderJina   = "jina"
	ProviderNone   = "none"
)

type PlannerConfig struct {
	// Strategy is "sorted" or "reasoning".
	Strategy string   `yaml:"strategy"`
	Ignore   []string `yaml:"ignore"`
}

type GeneratorConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxRetries  *int    `yaml:"max_retries"`
}

type ResearchConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// TimeoutConfig bounds each external call. Values are Go durations ("30s").
type TimeoutConfig struct {
	Generate time.Duration `yaml:"generate"`
	Search   time.Duration `yaml:"search"`
	Commit   time.Duration `yaml:"commit"`
	Request  time.Duration `yaml:"request"`
}

type Config struct {
	Addr          string          `yaml:"addr"`
	WorkspaceRoot string          `yaml:"workspace_root"`
	Workers       int             `yaml:"workers"`
	DiffContext   *int            `yaml:"diff_context"`
	Planner       PlannerConfig   `yaml:"planner"`
	Generator     GeneratorConfig `yaml:"generator"`
	Research      ResearchConfig  `yaml:"research"`
	Timeouts      TimeoutConfig   `yaml:"timeouts"`
	// Formatters maps a file extension to a formatter command line. "gofmt"
	// is built in; "|" separates chained commands.
	Formatters map[string][]string `yaml:"formatters"`
	JSONLogs   bool                `yaml:"json_logs"`
	LogFile    string              `yaml:"log_file"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaultValues()
	return cfg
}

// LoadConfig reads path, applies environment overrides and fills defaults. A
// missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	cfg.setDefaultValues()
	if err := cfg.Validate().CombinedError(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("REFACTORD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("REFACTORD_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
	if v := os.Getenv("JINA_API_KEY"); v != "" && cfg.Research.APIKey == "" {
		cfg.Research.APIKey = v
	}
	if os.Getenv("REFACTORD_JSON_LOGS") == "1" {
		cfg.JSONLogs = true
	}
}

func (cfg *Config) setDefaultValues() {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = "."
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.DiffContext == nil {
		n := 3
		cfg.DiffContext = &n
	}
	if cfg.Planner.Strategy == "" {
		cfg.Planner.Strategy = "sorted"
	}
	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = ProviderStub
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "qwen2.5-coder:7b"
	}
	if cfg.Generator.MaxRetries == nil {
		n := 3
		cfg.Generator.MaxRetries = &n
	}
	if cfg.Research.Provider == "" {
		cfg.Research.Provider = ProviderNone
	}
	if cfg.Timeouts.Generate == 0 {
		cfg.Timeouts.Generate = 120 * time.Second
	}
	if cfg.Timeouts.Search == 0 {
		cfg.Timeouts.Search = 30 * time.Second
	}
	if cfg.Timeouts.Commit == 0 {
		cfg.Timeouts.Commit = 30 * time.Second
	}
	if cfg.Timeouts.Request == 0 {
		cfg.Timeouts.Request = 10 * time.Minute
	}
	if cfg.Formatters == nil {
		cfg.Formatters = map[string][]string{".go": {"gofmt"}}
	}
	if cfg.LogFile == "" {
		cfg.LogFile = ".refactord/refactord.log"
	}
}

// DiffContextLines returns the configured number of diff context lines.
func (cfg *Config) DiffContextLines() int {
	if cfg.DiffContext == nil {
		return 3
	}
	return *cfg.DiffContext
}
