package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aristath/stagetrack/internal/stages"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultPaths returns the conventional global and project config paths.
// Global: ~/.stagetrack/config.json
// Project: .stagetrack/config.json (relative to cwd)
func DefaultPaths() (string, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(homeDir, ".stagetrack", "config.json"), filepath.Join(".stagetrack", "config.json"), nil
}

// LoadDefault loads configuration from the conventional paths.
func LoadDefault() (*Config, error) {
	globalPath, projectPath, err := DefaultPaths()
	if err != nil {
		return nil, err
	}
	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Set fields override the base; a non-empty stage list replaces it wholesale.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Database.Path != "" {
		base.Database.Path = loaded.Database.Path
	}

	if loaded.Monitor.RefreshInterval > 0 {
		base.Monitor.RefreshInterval = loaded.Monitor.RefreshInterval
	}
	if loaded.Monitor.Concurrency > 0 {
		base.Monitor.Concurrency = loaded.Monitor.Concurrency
	}
	if loaded.Monitor.WatchStore != nil {
		base.Monitor.WatchStore = loaded.Monitor.WatchStore
	}
	if loaded.Monitor.Retry.InitialInterval > 0 {
		base.Monitor.Retry.InitialInterval = loaded.Monitor.Retry.InitialInterval
	}
	if loaded.Monitor.Retry.MaxInterval > 0 {
		base.Monitor.Retry.MaxInterval = loaded.Monitor.Retry.MaxInterval
	}
	if loaded.Monitor.Retry.MaxElapsedTime > 0 {
		base.Monitor.Retry.MaxElapsedTime = loaded.Monitor.Retry.MaxElapsedTime
	}

	if len(loaded.Stages) > 0 {
		base.Stages = loaded.Stages
	}

	return nil
}

// DatabasePath returns the database path with a leading "~/" expanded.
func (c *Config) DatabasePath() (string, error) {
	path := c.Database.Path
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
	}
	return path, nil
}

// Catalog builds the stage catalog. Without configured stages the built-in catalog is used.
func (c *Config) Catalog() (*stages.Catalog, error) {
	if len(c.Stages) == 0 {
		return stages.DefaultCatalog(), nil
	}

	defs := make([]stages.Definition, 0, len(c.Stages))
	after := make(map[string]string, len(c.Stages))
	for _, sc := range c.Stages {
		days := stages.NoTimeline
		if sc.AllottedDays != nil {
			days = *sc.AllottedDays
		}
		name := sc.Name
		if name == "" {
			name = sc.ID
		}
		defs = append(defs, stages.Definition{
			ID:    sc.ID,
			Name:  name,
			Color: sc.Color,
			Min:   sc.Min,
			Max:   sc.Max,
			Days:  days,
		})
		if sc.After != "" {
			after[sc.ID] = sc.After
		}
	}

	ordered, err := stages.OrderByDependency(defs, after)
	if err != nil {
		return nil, fmt.Errorf("ordering configured stages: %w", err)
	}

	catalog, err := stages.NewCatalog(ordered)
	if err != nil {
		return nil, fmt.Errorf("validating configured stages: %w", err)
	}
	return catalog, nil
}

// StagesFromCatalog converts a catalog back into chained stage configs.
func StagesFromCatalog(c *stages.Catalog) []StageConfig {
	defs := c.Definitions()
	out := make([]StageConfig, 0, len(defs))
	for i, d := range defs {
		sc := StageConfig{
			ID:    d.ID,
			Name:  d.Name,
			Color: d.Color,
			Min:   d.Min,
			Max:   d.Max,
		}
		if d.HasTimeline() {
			days := d.Days
			sc.AllottedDays = &days
		}
		if i > 0 {
			sc.After = defs[i-1].ID
		}
		out = append(out, sc)
	}
	return out
}
