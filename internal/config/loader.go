package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a batch configuration from the given YAML file path.
// After parsing, it fills in defaults for values the file doesn't set.
func Load(path string) (*BatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg BatchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a batch config in standard locations and loads
// the first one found. Search order: ./modernize.yaml, ~/.modernize/batch.yaml
func LoadDefault() (*BatchConfig, error) {
	candidates := []string{"modernize.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".modernize", "batch.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return nil, fmt.Errorf("no batch config found (searched: %v)", candidates)
}

// applyDefaults fills in unset values. The concurrency default follows the
// capability backend's rate limits, not the CPU count: this is an I/O-bound
// fan-out.
func applyDefaults(cfg *BatchConfig) {
	b := &cfg.Batch

	if b.ConcurrencyLimit <= 0 {
		b.ConcurrencyLimit = 8
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 2
	}
	if b.PerArtifactTimeout == "" {
		b.PerArtifactTimeout = "5m"
	}

	if b.Models.Analyzer == "" {
		b.Models.Analyzer = "sonnet"
	}
	if b.Models.Transformer == "" {
		b.Models.Transformer = "haiku"
	}
	if b.Models.Verifier == "" {
		b.Models.Verifier = "haiku"
	}
	if b.Models.Diagnoser == "" {
		b.Models.Diagnoser = b.Models.Analyzer
	}

	if b.Scan.MaxFileKB <= 0 {
		b.Scan.MaxFileKB = 256
	}

	if b.Publish.BaseBranch == "" {
		b.Publish.BaseBranch = "main"
	}
	if b.Publish.BranchPrefix == "" {
		b.Publish.BranchPrefix = "modernize"
	}
	if b.Publish.MaxRetries <= 0 {
		b.Publish.MaxRetries = 3
	}
}
