// ABOUTME: Configuration loading and parsing for praxy-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete praxy-gateway configuration
type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Database   DatabaseConfig    `yaml:"database"`
	Completion CompletionConfig  `yaml:"completion"`
	Models     map[string]string `yaml:"models"`
	Indexer    IndexerConfig     `yaml:"indexer"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds ledger database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CompletionConfig holds the remote completion endpoint configuration.
// The endpoint is OpenAI-compatible; BaseURL defaults to Together's API.
type CompletionConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	SystemPrompt   string        `yaml:"system_prompt"`
	DefaultVariant string        `yaml:"default_variant"`
	Timeout        time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// IndexerConfig holds vector store configuration for document ingest
type IndexerConfig struct {
	QdrantHost string `yaml:"qdrant_host"`
	QdrantPort int    `yaml:"qdrant_port"`
	Collection string `yaml:"collection"`
	SymKeyHex  string `yaml:"symkey_hex"` // 32-byte AES key, hex encoded
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the corresponding fields are absent.
const (
	DefaultBaseURL      = "https://api.together.xyz/v1"
	DefaultVariant      = "t_tuned"
	DefaultTimeout      = 60 * time.Second
	DefaultQdrantPort   = 6334
	DefaultCollection   = "medical_chunks"
	DefaultSystemPrompt = "You are an expert doctor on Sore Throat in Adults."
)

// DefaultModels maps model variant codes to the backend models that serve
// them. Entries from the models section of the config override these.
func DefaultModels() map[string]string {
	return map[string]string{
		"default": "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free",
		"c-tuned": "jdestephen07_1f06/Meta-Llama-3.1-8B-Instruct-Reference-test_conv_8b-4fd4f33d",
		"t_tuned": "jdestephen07_1f06/Meta-Llama-3.1-8B-Instruct-Reference-test_token_8b-14cdef80",
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in optional fields that were omitted from the file.
func (c *Config) applyDefaults() {
	if c.Completion.BaseURL == "" {
		c.Completion.BaseURL = DefaultBaseURL
	}
	if c.Completion.DefaultVariant == "" {
		c.Completion.DefaultVariant = DefaultVariant
	}
	if c.Completion.SystemPrompt == "" {
		c.Completion.SystemPrompt = DefaultSystemPrompt
	}
	if c.Indexer.QdrantHost == "" {
		c.Indexer.QdrantHost = "localhost"
	}
	if c.Indexer.QdrantPort == 0 {
		c.Indexer.QdrantPort = DefaultQdrantPort
	}
	if c.Indexer.Collection == "" {
		c.Indexer.Collection = DefaultCollection
	}

	models := DefaultModels()
	for code, name := range c.Models {
		models[code] = name
	}
	c.Models = models
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if _, ok := c.Models[c.Completion.DefaultVariant]; !ok {
		return fmt.Errorf("completion.default_variant %q has no entry in models", c.Completion.DefaultVariant)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	cfg.Completion.Timeout = DefaultTimeout

	if cfg.Completion.TimeoutRaw != "" {
		timeout, err := time.ParseDuration(cfg.Completion.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing completion timeout %q: %w", cfg.Completion.TimeoutRaw, err)
		}
		cfg.Completion.Timeout = timeout
	}

	return nil
}
