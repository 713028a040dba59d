package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the stability.yaml configuration.
type Config struct {
	Input    string         `yaml:"input"`
	Validate bool           `yaml:"validate"`
	Output   OutputConfig   `yaml:"output"`
	Baseline BaselineConfig `yaml:"baseline"`
}

// OutputConfig controls where the stability report is written.
type OutputConfig struct {
	Report string `yaml:"report"`
}

// BaselineConfig controls the baseline check.
type BaselineConfig struct {
	Path         string   `yaml:"path"`
	Ignore       []string `yaml:"ignore"` // qualified-name prefixes skipped by the check
	ContextLines int      `yaml:"context_lines"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Input:    "build/stability/records.jsonl",
		Validate: true,
		Output: OutputConfig{
			Report: "build/stability/stability-info.json",
		},
		Baseline: BaselineConfig{
			Path:         "stability/baseline.json",
			ContextLines: 3,
		},
	}
}

// Load reads a configuration file from the given path.
// Missing fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Ensure required defaults
	def := Default()
	if cfg.Input == "" {
		cfg.Input = def.Input
	}
	if cfg.Output.Report == "" {
		cfg.Output.Report = def.Output.Report
	}
	if cfg.Baseline.Path == "" {
		cfg.Baseline.Path = def.Baseline.Path
	}
	if cfg.Baseline.ContextLines <= 0 {
		cfg.Baseline.ContextLines = def.Baseline.ContextLines
	}

	return cfg, nil
}

// IsIgnored returns true if the qualified name falls under an ignored prefix.
func (c *Config) IsIgnored(qualifiedName string) bool {
	for _, p := range c.Baseline.Ignore {
		if p != "" && strings.HasPrefix(qualifiedName, p) {
			return true
		}
	}
	return false
}
