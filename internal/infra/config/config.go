// Package config provides application configuration. Values come from an
// optional YAML file overlaid by environment variables; every field has a
// safe default so the binary runs locally with no setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the Diagrammaton server.
type Config struct {
	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path"`

	// Host/Port for the HTTP listener.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// OpenAIBaseURL / AnthropicBaseURL override the provider API
	// endpoints (tests point these at local mock servers).
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	AnthropicBaseURL string `yaml:"anthropic_base_url"`

	// RateLimit requests per RateWindow per identifier.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`

	// RequestBudget is the end-to-end soft deadline for one generation
	// request. FirstByteTimeout guards the streaming path specifically.
	RequestBudget    time.Duration `yaml:"request_budget"`
	FirstByteTimeout time.Duration `yaml:"first_byte_timeout"`
}

const (
	envConfigFile       = "DIAGRAMMATON_CONFIG"
	envDBPath           = "DIAGRAMMATON_DB"
	envHost             = "DIAGRAMMATON_HOST"
	envPort             = "DIAGRAMMATON_PORT"
	envOpenAIBaseURL    = "OPENAI_BASE_URL"
	envAnthropicBaseURL = "ANTHROPIC_BASE_URL"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:           "diagrammaton.db",
		Host:             "0.0.0.0",
		Port:             8080,
		OpenAIBaseURL:    "https://api.openai.com",
		AnthropicBaseURL: "https://api.anthropic.com",
		RateLimit:        2,
		RateWindow:       5 * time.Second,
		RequestBudget:    55 * time.Second,
		FirstByteTimeout: 10 * time.Second,
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// named by DIAGRAMMATON_CONFIG (if set), then env var overrides.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(envConfigFile); path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.DBPath = envOr(envDBPath, cfg.DBPath)
	cfg.Host = envOr(envHost, cfg.Host)
	cfg.OpenAIBaseURL = envOr(envOpenAIBaseURL, cfg.OpenAIBaseURL)
	cfg.AnthropicBaseURL = envOr(envAnthropicBaseURL, cfg.AnthropicBaseURL)
	if v := os.Getenv(envPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid %s %q: %w", envPort, v, err)
		}
		cfg.Port = port
	}

	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

// envOr returns the value of key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
