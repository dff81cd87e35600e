// Package config loads client settings from defaults, a .env file, an
// optional YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/themobileprof/mistral-go/pkg/mistral"
)

// Environment variables consulted by Load
const (
	EnvConfigPath = "MISTRAL_CONFIG"
	EnvAPIKey     = mistral.APIKeyEnv
	EnvEndpoint   = "MISTRAL_ENDPOINT"
	EnvModel      = "MISTRAL_MODEL"
	EnvTimeout    = "MISTRAL_TIMEOUT"

	// DefaultConfigFile is looked up in the working directory
	DefaultConfigFile = "mistral.yaml"
)

// Config holds the settings shared by the CLI and the mock server
type Config struct {
	APIKey     string
	Endpoint   string
	Model      string
	EmbedModel string
	Timeout    time.Duration
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Endpoint:   mistral.DefaultEndpoint,
		Model:      mistral.ModelTiny,
		EmbedModel: mistral.ModelEmbed,
	}
}

// Load builds a Config. configPath may be empty, in which case
// MISTRAL_CONFIG and then ./mistral.yaml are tried.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if path := discoverConfigFile(configPath); path != "" {
		if err := loadYAMLFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return &cfg, nil
}

// ClientConfig maps the settings onto the SDK's client configuration
func (c *Config) ClientConfig() mistral.Config {
	return mistral.Config{
		APIKey:   c.APIKey,
		Endpoint: c.Endpoint,
		Timeout:  c.Timeout,
	}
}

// Validate checks that the endpoint is an absolute http(s) URL and the
// timeout is not negative.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q: scheme must be http or https", c.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q: missing host", c.Endpoint)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// fileConfig mirrors Config with the timeout as a string so YAML files
// can use Go duration syntax ("30s").
type fileConfig struct {
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Model      string `yaml:"model"`
	EmbedModel string `yaml:"embed_model"`
	Timeout    string `yaml:"timeout"`
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	if fc.APIKey != "" {
		cfg.APIKey = fc.APIKey
	}
	if fc.Endpoint != "" {
		cfg.Endpoint = fc.Endpoint
	}
	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.EmbedModel != "" {
		cfg.EmbedModel = fc.EmbedModel
	}
	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = d
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	return nil
}
