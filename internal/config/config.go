package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// defaultLimit is the fallback result limit when no flag, config value,
// or CODE_SEARCH_LIMIT env var is set.
const defaultLimit = 10

// defaultMaxLines is the fallback chunk size (in lines) the heuristic
// chunker splits on when neither --max-lines nor max_lines is set.
const defaultMaxLines = 60

// EmbeddingConfig selects the embedder backend.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
}

// Config is the project-level configuration loaded from .codesearch.yaml.
type Config struct {
	Exclude  []string        `yaml:"exclude"`
	MaxLines int             `yaml:"max_lines"`
	Limit    int             `yaml:"limit"`
	Embedder EmbeddingConfig `yaml:"embedder"`
}

// NewConfig returns a Config populated with built-in defaults.
func NewConfig() *Config {
	return &Config{
		MaxLines: defaultMaxLines,
		Limit:    defaultLimit,
		Embedder: EmbeddingConfig{Provider: "static"},
	}
}

// Load reads <dir>/.codesearch.yaml if present and merges it over the
// built-in defaults, then applies the CODE_SEARCH_LIMIT env var override.
// A missing config file is not an error.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	path := filepath.Join(dir, ".codesearch.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return c.loadYAML(path)
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero values from other onto c.
func (c *Config) mergeWith(other *Config) {
	if len(other.Exclude) > 0 {
		c.Exclude = other.Exclude
	}
	if other.MaxLines != 0 {
		c.MaxLines = other.MaxLines
	}
	if other.Limit != 0 {
		c.Limit = other.Limit
	}
	if other.Embedder.Provider != "" {
		c.Embedder.Provider = other.Embedder.Provider
	}
}

// applyEnvOverrides applies CODE_SEARCH_LIMIT, which sits below CLI flags
// but above config-file values and the built-in default.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODE_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Limit = n
		}
	}
}

// WriteYAML writes the config to path in YAML form.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
