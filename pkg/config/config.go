package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/routebench/pkg/models"
)

// DefaultPath is the config file used when no --config flag is given.
const DefaultPath = "routebench.yaml"

// Config holds all routebench configuration.
type Config struct {
	API          APIConfig          `yaml:"api" toml:"api"`
	Timeouts     TimeoutConfig      `yaml:"timeouts" toml:"timeouts"`
	DBPath       string             `yaml:"db_path" toml:"db_path"`
	History      HistoryConfig      `yaml:"history" toml:"history"`
	CatalogCache CatalogCacheConfig `yaml:"catalog_cache" toml:"catalog_cache"`
	Suites       SuitesConfig       `yaml:"suites" toml:"suites"`
	Runner       RunnerConfig       `yaml:"runner" toml:"runner"`
	Recommend    RecommendConfig    `yaml:"recommend" toml:"recommend"`
	Aliases      []AliasConfig      `yaml:"aliases" toml:"aliases"`
}

// APIConfig points at the routing API and identifies the client to it.
type APIConfig struct {
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	APIKey    string `yaml:"api_key" toml:"api_key"`
	Referer   string `yaml:"referer" toml:"referer"`
	Title     string `yaml:"title" toml:"title"`
	UserAgent string `yaml:"user_agent" toml:"user_agent"`
}

// TimeoutConfig holds per-call wall-clock limits.
type TimeoutConfig struct {
	Run      time.Duration `yaml:"run" toml:"run"`
	Metadata time.Duration `yaml:"metadata" toml:"metadata"`
	Validate time.Duration `yaml:"validate" toml:"validate"`
}

// HistoryConfig controls run history retention.
type HistoryConfig struct {
	Enabled  bool `yaml:"enabled" toml:"enabled"`
	MaxItems int  `yaml:"max_items" toml:"max_items"`
}

// CatalogCacheConfig controls the persistent catalog response cache.
type CatalogCacheConfig struct {
	Enabled bool          `yaml:"enabled" toml:"enabled"`
	TTL     time.Duration `yaml:"ttl" toml:"ttl"`
}

// SuitesConfig locates user-defined suites.
type SuitesConfig struct {
	CustomFile string `yaml:"custom_file" toml:"custom_file"`
}

// RunnerConfig tunes suite execution.
type RunnerConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	DefaultMaxTokens  int     `yaml:"default_max_tokens" toml:"default_max_tokens"`
}

// RecommendConfig sets recommendation defaults.
type RecommendConfig struct {
	Suite     string         `yaml:"suite" toml:"suite"`
	MaxCases  int            `yaml:"max_cases" toml:"max_cases"`
	MaxTokens int            `yaml:"max_tokens" toml:"max_tokens"`
	Weights   models.Weights `yaml:"weights" toml:"weights"`
}

// AliasConfig maps a short name to a model id and an optional provider pin.
type AliasConfig struct {
	Name     string `yaml:"name" toml:"name"`
	Model    string `yaml:"model" toml:"model"`
	Provider string `yaml:"provider" toml:"provider"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://openrouter.ai/api/v1",
			Referer:   "https://github.com/pario-ai/routebench",
			Title:     "routebench",
			UserAgent: "routebench",
		},
		Timeouts: TimeoutConfig{
			Run:      60 * time.Second,
			Metadata: 15 * time.Second,
			Validate: 10 * time.Second,
		},
		DBPath: "routebench.db",
		History: HistoryConfig{
			Enabled:  true,
			MaxItems: 100,
		},
		CatalogCache: CatalogCacheConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		Suites: SuitesConfig{
			CustomFile: "suites.yaml",
		},
		Runner: RunnerConfig{
			DefaultMaxTokens: 512,
		},
		Recommend: RecommendConfig{
			Suite:     "general-purpose-v1",
			MaxCases:  3,
			MaxTokens: 256,
			Weights:   models.DefaultWeights,
		},
	}
}

// Load reads a YAML or TOML config file and expands environment variables.
// The format is chosen by file extension; anything but .toml is read as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default() with
// the API key taken from OPENROUTER_API_KEY.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.API.APIKey = os.Getenv("OPENROUTER_API_KEY")
		return cfg, nil
	}
	return cfg, err
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("invalid config: api.base_url is empty")
	}
	if c.Timeouts.Run <= 0 || c.Timeouts.Metadata <= 0 || c.Timeouts.Validate <= 0 {
		return fmt.Errorf("invalid config: timeouts must be positive")
	}
	if c.History.MaxItems < 0 {
		return fmt.Errorf("invalid config: history.max_items must not be negative")
	}
	if c.Runner.RequestsPerSecond < 0 {
		return fmt.Errorf("invalid config: runner.requests_per_second must not be negative")
	}
	for _, a := range c.Aliases {
		if a.Name == "" || a.Model == "" {
			return fmt.Errorf("invalid config: alias needs name and model")
		}
	}
	return nil
}
