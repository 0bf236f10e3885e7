package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all unitgen configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Generator settings
	Generator GeneratorConfig `yaml:"generator"`

	// Import classification buckets
	Buckets BucketsConfig `yaml:"buckets"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the generation collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, anthropic, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// GeneratorConfig configures test generation and output layout.
type GeneratorConfig struct {
	// Output directory for generated test files
	OutputDir string `yaml:"output_dir"`

	// Mirror source directory structure under OutputDir
	MirrorStructure bool `yaml:"mirror_structure"`

	// Directory holding prompt template overrides; embedded defaults
	// are used when empty or when a template file is missing
	PromptDir string `yaml:"prompt_dir"`

	// Prompt/response cache
	CacheEnabled bool   `yaml:"cache_enabled"`
	CachePath    string `yaml:"cache_path"`
}

// BucketsConfig holds the recognized-module lists used to order imports
// in assembled test files. Anything not listed here and not matching the
// module under test defaults to the third-party bucket.
type BucketsConfig struct {
	Standard   []string `yaml:"standard"`
	ThirdParty []string `yaml:"third_party"`
}

// LoggingConfig configures the categorized debug logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "unitgen",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  "120s",
		},

		Generator: GeneratorConfig{
			OutputDir:       "ut_output",
			MirrorStructure: true,
			CacheEnabled:    false,
			CachePath:       ".unitgen/cache.db",
		},

		Buckets: BucketsConfig{
			Standard: []string{
				"unittest", "datetime", "os", "sys", "json", "typing",
				"collections", "itertools", "functools", "pathlib", "re",
			},
			ThirdParty: []string{
				"pytest", "mock", "unittest.mock", "numpy", "pandas",
				"requests", "flask", "django", "fastapi",
			},
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
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
// Provider-specific keys are checked in priority order; an explicit
// UNITGEN_* variable always wins.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}

	if key := os.Getenv("UNITGEN_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if provider := os.Getenv("UNITGEN_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if model := os.Getenv("UNITGEN_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if out := os.Getenv("UNITGEN_OUTPUT_DIR"); out != "" {
		c.Generator.OutputDir = out
	}
}

// ConfigPath returns the workspace-relative config file location.
func ConfigPath(workspace string) string {
	return filepath.Join(workspace, ".unitgen", "config.yaml")
}
