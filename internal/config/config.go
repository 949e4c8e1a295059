// Package config loads the orchestrator's run configuration from
// xjet.config.yaml, with xjet.config.json as a fallback.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BuildConfig controls how suite files are transpiled/bundled before
// dispatch. All four fields are consumed by the bundler, not by the
// engine itself.
type BuildConfig struct {
	Target   string   `yaml:"target" json:"target"`
	External []string `yaml:"external,omitempty" json:"external,omitempty"`
	Platform string   `yaml:"platform,omitempty" json:"platform,omitempty"`
	Packages []string `yaml:"packages,omitempty" json:"packages,omitempty"`
}

// RunnerConfig describes one remote execution endpoint. A non-empty
// TestRunners list in Config switches the orchestrator from LocalTarget
// to ExternalTarget.
type RunnerConfig struct {
	ID          string `yaml:"id" json:"id"`
	Address     string `yaml:"address" json:"address"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
}

// Config is the full set of options the engine consumes.
type Config struct {
	Files       []string       `yaml:"files" json:"files"`
	Suites      []string       `yaml:"suites,omitempty" json:"suites,omitempty"`
	Exclude     []string       `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Timeout     int            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Bail        bool           `yaml:"bail,omitempty" json:"bail,omitempty"`
	Watch       bool           `yaml:"watch,omitempty" json:"watch,omitempty"`
	Randomize   bool           `yaml:"randomize,omitempty" json:"randomize,omitempty"`
	Filter      []string       `yaml:"filter,omitempty" json:"filter,omitempty"`
	Parallel    int            `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	Silent      bool           `yaml:"silent,omitempty" json:"silent,omitempty"`
	Build       BuildConfig    `yaml:"build,omitempty" json:"build,omitempty"`
	TestRunners []RunnerConfig `yaml:"testRunners,omitempty" json:"testRunners,omitempty"`

	// ProjectRoot is the directory the config file was loaded from,
	// used to resolve the Files/Suites/Exclude globs. Not persisted.
	ProjectRoot string `yaml:"-" json:"-"`
}

// defaultConfig is the baseline applied before the user's file is
// merged in.
func defaultConfig() Config {
	return Config{
		Files:    []string{"**/*.test.js"},
		Timeout:  5000,
		Parallel: 1,
		Build: BuildConfig{
			Target: "es2020",
		},
	}
}

// Load finds xjet.config.yaml (or .json) under projectRoot and merges
// it over defaultConfig. Absence of either file is not an error; the
// defaults stand.
func Load(projectRoot string) (*Config, error) {
	cfg := defaultConfig()
	cfg.ProjectRoot = projectRoot

	yamlPath := filepath.Join(projectRoot, "xjet.config.yaml")
	jsonPath := filepath.Join(projectRoot, "xjet.config.json")

	switch {
	case fileExists(yamlPath):
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read xjet.config.yaml: %w", err)
		}
		var user Config
		if err := yaml.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("parse xjet.config.yaml: %w", err)
		}
		merge(&cfg, &user)
	case fileExists(jsonPath):
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("read xjet.config.json: %w", err)
		}
		var user Config
		if err := json.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("parse xjet.config.json: %w", err)
		}
		merge(&cfg, &user)
	}

	cfg.ProjectRoot = projectRoot
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// merge overlays user-supplied fields onto base in place, field by
// field rather than a blind struct replace (a user config need not
// repeat every default).
func merge(base *Config, user *Config) {
	if len(user.Files) > 0 {
		base.Files = user.Files
	}
	if len(user.Suites) > 0 {
		base.Suites = user.Suites
	}
	if len(user.Exclude) > 0 {
		base.Exclude = user.Exclude
	}
	if user.Timeout > 0 {
		base.Timeout = user.Timeout
	}
	base.Bail = user.Bail
	base.Watch = user.Watch
	base.Randomize = user.Randomize
	if len(user.Filter) > 0 {
		base.Filter = user.Filter
	}
	if user.Parallel > 0 {
		base.Parallel = user.Parallel
	}
	base.Silent = user.Silent
	if user.Build.Target != "" {
		base.Build.Target = user.Build.Target
	}
	if len(user.Build.External) > 0 {
		base.Build.External = user.Build.External
	}
	if user.Build.Platform != "" {
		base.Build.Platform = user.Build.Platform
	}
	if len(user.Build.Packages) > 0 {
		base.Build.Packages = user.Build.Packages
	}
	if len(user.TestRunners) > 0 {
		base.TestRunners = user.TestRunners
	}
}

// UsesExternalTarget reports whether the configuration selects the
// remote runner pool over the in-process sandbox.
func (c *Config) UsesExternalTarget() bool {
	return len(c.TestRunners) > 0
}
