package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*SchedulerConfig, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Merge global config if exists
	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Merge project config if exists (highest precedence)
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.scheduler/config.json
// Project: .scheduler/config.json (relative to cwd)
func LoadDefault() (*SchedulerConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".scheduler", "config.json")
	projectPath := filepath.Join(".scheduler", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *SchedulerConfig, path string) error {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded SchedulerConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	// Merge weights per level
	for level, weight := range loaded.Weights {
		base.Weights[level] = weight
	}

	// Merge chains
	for key, chain := range loaded.Chains {
		base.Chains[key] = chain
	}

	// Context factors replace wholesale when the section is present.
	// A zero-valued section is indistinguishable from an absent one, so an
	// all-zero context in a file is treated as "not set".
	if loaded.Context != (ContextConfig{}) {
		base.Context = loaded.Context
	}

	// Runner scalars override individually when non-zero
	if loaded.Runner.Concurrency > 0 {
		base.Runner.Concurrency = loaded.Runner.Concurrency
	}
	mergeRetry(&base.Runner.Retry, loaded.Runner.Retry)

	return nil
}

func mergeRetry(base *RetryConfig, loaded RetryConfig) {
	if loaded.InitialIntervalMS > 0 {
		base.InitialIntervalMS = loaded.InitialIntervalMS
	}
	if loaded.MaxIntervalMS > 0 {
		base.MaxIntervalMS = loaded.MaxIntervalMS
	}
	if loaded.MaxElapsedMS > 0 {
		base.MaxElapsedMS = loaded.MaxElapsedMS
	}
	if loaded.Multiplier > 0 {
		base.Multiplier = loaded.Multiplier
	}
	if loaded.RandomizationFactor > 0 {
		base.RandomizationFactor = loaded.RandomizationFactor
	}
}
