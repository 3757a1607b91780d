// Package config loads cairn configuration from TOML, YAML, or JSON files.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for cairn.
type Config struct {
	// Project is the project name used for tombstone registration.
	Project string `koanf:"project"`

	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis"`

	// Monitoring window settings
	Monitor MonitorConfig `koanf:"monitor"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude"`

	// External event store credentials
	Store StoreConfig `koanf:"store"`

	// Output settings
	Output OutputConfig `koanf:"output"`
}

// AnalysisConfig controls candidate selection.
type AnalysisConfig struct {
	MinConfidence float64 `koanf:"min_confidence"`
	MaxChanges    int     `koanf:"max_changes"`
}

// MonitorConfig controls the reconciliation window.
type MonitorConfig struct {
	Days int `koanf:"days"`
}

// ExcludeConfig defines file exclusion patterns (gitignore syntax).
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns"`
	Dirs      []string `koanf:"dirs"`
	Gitignore bool     `koanf:"gitignore"`
}

// StoreConfig holds credentials for the external tombstone store.
type StoreConfig struct {
	URL            string `koanf:"url"`
	Key            string `koanf:"key"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format"` // text, json, csv
	Color  bool   `koanf:"color"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Project: "default",
		Analysis: AnalysisConfig{
			MinConfidence: 0.5,
			MaxChanges:    10,
		},
		Monitor: MonitorConfig{
			Days: 7,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*_test.go",
				"*.pb.go",
				"*_gen.go",
			},
			Dirs: []string{
				"vendor",
				"testdata",
				"node_modules",
				".git",
				".cairn",
				"dist",
				"build",
			},
			Gitignore: true,
		},
		Store: StoreConfig{
			TimeoutSeconds: 5,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	configNames := []string{
		"cairn.toml",
		"cairn.yaml",
		"cairn.yml",
		"cairn.json",
		".cairn.toml",
		".cairn.yaml",
		".cairn.yml",
		".cairn.json",
	}

	searchDirs := []string{".", ".cairn"}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := Load(path)
				if err == nil {
					return cfg
				}
			}
		}
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg
}

// applyEnv overlays store credentials from the environment. Environment
// variables win over file values so deployments can keep keys out of
// checked-in config.
func (c *Config) applyEnv() {
	if v := os.Getenv("CAIRN_STORE_URL"); v != "" {
		c.Store.URL = v
	}
	if v := os.Getenv("CAIRN_STORE_KEY"); v != "" {
		c.Store.Key = v
	}
}

// HasStore reports whether store credentials are configured.
func (c *Config) HasStore() bool {
	return c.Store.URL != "" && c.Store.Key != ""
}
