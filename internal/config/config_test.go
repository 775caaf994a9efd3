// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:4000"

database:
  path: "./test.db"

completion:
  api_key: "test-key"
  default_variant: "t_tuned"
  timeout: "30s"

models:
  custom: "org/custom-model"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:4000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:4000")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Completion.APIKey != "test-key" {
		t.Errorf("Completion.APIKey = %q, want %q", cfg.Completion.APIKey, "test-key")
	}
	if cfg.Completion.Timeout != 30*time.Second {
		t.Errorf("Completion.Timeout = %v, want 30s", cfg.Completion.Timeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	// User entries merge over the built-in variant map
	if cfg.Models["custom"] != "org/custom-model" {
		t.Errorf("Models[custom] = %q, want %q", cfg.Models["custom"], "org/custom-model")
	}
	if _, ok := cfg.Models["t_tuned"]; !ok {
		t.Error("built-in t_tuned variant missing after merge")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:4000"
database:
  path: "./test.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Completion.BaseURL != DefaultBaseURL {
		t.Errorf("Completion.BaseURL = %q, want default %q", cfg.Completion.BaseURL, DefaultBaseURL)
	}
	if cfg.Completion.DefaultVariant != DefaultVariant {
		t.Errorf("Completion.DefaultVariant = %q, want %q", cfg.Completion.DefaultVariant, DefaultVariant)
	}
	if cfg.Completion.Timeout != DefaultTimeout {
		t.Errorf("Completion.Timeout = %v, want %v", cfg.Completion.Timeout, DefaultTimeout)
	}
	if cfg.Indexer.QdrantPort != DefaultQdrantPort {
		t.Errorf("Indexer.QdrantPort = %d, want %d", cfg.Indexer.QdrantPort, DefaultQdrantPort)
	}
	if cfg.Indexer.Collection != DefaultCollection {
		t.Errorf("Indexer.Collection = %q, want %q", cfg.Indexer.Collection, DefaultCollection)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PRAXY_TEST_API_KEY", "secret-from-env")

	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:4000"
database:
  path: "./test.db"
completion:
  api_key: "${PRAXY_TEST_API_KEY}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Completion.APIKey != "secret-from-env" {
		t.Errorf("Completion.APIKey = %q, want %q", cfg.Completion.APIKey, "secret-from-env")
	}
}

func TestLoad_MissingHTTPAddr(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./test.db"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should fail when server.http_addr is missing")
	}
	if !strings.Contains(err.Error(), "http_addr") {
		t.Errorf("error %q should mention http_addr", err)
	}
}

func TestLoad_MissingDatabasePath(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:4000"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should fail when database.path is missing")
	}
}

func TestLoad_UnknownDefaultVariant(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:4000"
database:
  path: "./test.db"
completion:
  default_variant: "nonexistent"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should fail when default_variant has no models entry")
	}
}

func TestLoad_InvalidTimeout(t *testing.T) {
	configPath := writeConfig(t, `
server:
  http_addr: "0.0.0.0:4000"
database:
  path: "./test.db"
completion:
  timeout: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should fail on an invalid timeout string")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}
