// ABOUTME: Configuration loading for the praxy Telegram bridge
// ABOUTME: Loads TOML config with environment variable expansion

package main

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Bridge   BridgeConfig   `toml:"bridge"`
	Logging  LoggingConfig  `toml:"logging"`
}

type TelegramConfig struct {
	Token string `toml:"token"`
}

type GatewayConfig struct {
	URL string `toml:"url"`
}

type BridgeConfig struct {
	ModelVariant string  `toml:"model_variant"`
	AllowedUsers []int64 `toml:"allowed_users"` // empty = everyone
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads config from the given path, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
// gateway.url may be empty: the bot then runs with the stub responder.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.Gateway.URL != "" {
		u, err := url.Parse(c.Gateway.URL)
		if err != nil {
			return fmt.Errorf("gateway.url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("gateway.url must use http or https scheme")
		}
	}
	return nil
}

// allowed reports whether the given Telegram user may talk to the bot.
func (c *Config) allowed(userID int64) bool {
	if len(c.Bridge.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.Bridge.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
