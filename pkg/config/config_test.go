package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFile_ReturnsDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path == "" {
		t.Fatalf("expected config path")
	}
	if got := cfg.Host(); got != DefaultHost {
		t.Fatalf("cfg.Host() = %q, want %q", got, DefaultHost)
	}
	if got := cfg.Port(); got != DefaultPort {
		t.Fatalf("cfg.Port() = %d, want %d", got, DefaultPort)
	}
	if got := cfg.RunTimeout(); got != DefaultRunTimeout {
		t.Fatalf("cfg.RunTimeout() = %v, want %v", got, DefaultRunTimeout)
	}
	if got := cfg.MaxToolRounds(); got != DefaultMaxToolRounds {
		t.Fatalf("cfg.MaxToolRounds() = %d, want %d", got, DefaultMaxToolRounds)
	}
}

func TestEnsureDefaultConfig_CreatesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := EnsureDefaultConfig()
	if err != nil {
		t.Fatalf("EnsureDefaultConfig() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist at %s: %v", path, err)
	}

	cfg, gotPath, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if filepath.Clean(gotPath) != filepath.Clean(path) {
		t.Fatalf("Load() path = %s, want %s", gotPath, path)
	}
	if got := cfg.ModelName(); got != DefaultModelName {
		t.Fatalf("cfg.ModelName() = %q, want %q", got, DefaultModelName)
	}
}

func TestLoad_ParsesFullConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".odai")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	content := `server:
  host: 0.0.0.0
  port: 9090
model:
  api_key: test-key
  name: gpt-4o-mini
session:
  run_timeout_seconds: 60
  tool_timeout_seconds: 5
  max_tool_rounds: 3
  max_parallel_tools: 2
connectors:
  finnhub_key: fh-key
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Host(); got != "0.0.0.0" {
		t.Fatalf("cfg.Host() = %q, want %q", got, "0.0.0.0")
	}
	if got := cfg.Port(); got != 9090 {
		t.Fatalf("cfg.Port() = %d, want %d", got, 9090)
	}
	if got := cfg.ModelName(); got != "gpt-4o-mini" {
		t.Fatalf("cfg.ModelName() = %q, want %q", got, "gpt-4o-mini")
	}
	if got := cfg.RunTimeout(); got != 60*time.Second {
		t.Fatalf("cfg.RunTimeout() = %v, want %v", got, 60*time.Second)
	}
	if got := cfg.ToolTimeout(); got != 5*time.Second {
		t.Fatalf("cfg.ToolTimeout() = %v, want %v", got, 5*time.Second)
	}
	if got := cfg.MaxToolRounds(); got != 3 {
		t.Fatalf("cfg.MaxToolRounds() = %d, want %d", got, 3)
	}
	if got := cfg.MaxParallelTools(); got != 2 {
		t.Fatalf("cfg.MaxParallelTools() = %d, want %d", got, 2)
	}
	if got := cfg.Connectors.FinnhubKey; got != "fh-key" {
		t.Fatalf("cfg.Connectors.FinnhubKey = %q, want %q", got, "fh-key")
	}
}

func TestLoad_RejectsInvalidRounds(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".odai")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("session:\n  max_tool_rounds: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, err := Load(); err == nil {
		t.Fatalf("expected error for max_tool_rounds = 0")
	}
}
