package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.odai/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8090
// model:
//   api_key: sk-...
//   name: gpt-4o
// session:
//   run_timeout_seconds: 180
//   tool_timeout_seconds: 30
//   max_tool_rounds: 10
//   max_parallel_tools: 4
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Model      ModelConfig      `yaml:"model"`
	Session    SessionConfig    `yaml:"session"`
	Connectors ConnectorsConfig `yaml:"connectors"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

// StorageConfig locates the embedded sqlite database.
type StorageConfig struct {
	Path *string `yaml:"path"`
}

// ModelConfig configures the chat model behind the orchestrator.
type ModelConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Name    string `yaml:"name"`
}

// SessionConfig tunes run execution limits.
type SessionConfig struct {
	RunTimeoutSeconds  *int `yaml:"run_timeout_seconds"`
	ToolTimeoutSeconds *int `yaml:"tool_timeout_seconds"`
	MaxToolRounds      *int `yaml:"max_tool_rounds"`
	MaxParallelTools   *int `yaml:"max_parallel_tools"`
}

// ConnectorsConfig holds API keys for the built-in capability connectors.
type ConnectorsConfig struct {
	FinnhubKey       string `yaml:"finnhub_key"`
	CoinMarketCapKey string `yaml:"coinmarketcap_key"`
	WeatherAPIKey    string `yaml:"weatherapi_key"`
	SearchKey        string `yaml:"google_search_key"`
	SearchCX         string `yaml:"google_search_cx"`
	MailgunKey       string `yaml:"mailgun_key"`
	MailgunDomain    string `yaml:"mailgun_domain"`
	MailFrom         string `yaml:"mail_from"`
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8090

	DefaultModelName = "gpt-4o"

	DefaultRunTimeout       = 180 * time.Second
	DefaultToolTimeout      = 30 * time.Second
	DefaultMaxToolRounds    = 10
	DefaultMaxParallelTools = 4
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".odai")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.odai/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	if cfg.MaxToolRounds() < 1 {
		return nil, "", fmt.Errorf("invalid session.max_tool_rounds %d in %s", cfg.MaxToolRounds(), configFile)
	}
	if cfg.MaxParallelTools() < 1 {
		return nil, "", fmt.Errorf("invalid session.max_parallel_tools %d in %s", cfg.MaxParallelTools(), configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{
		Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)},
		Model:  ModelConfig{Name: DefaultModelName},
	}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions; the file holds API keys.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

// DBPath returns the sqlite database path, defaulting next to the config file.
func (c *AppConfig) DBPath() (string, error) {
	if c != nil && c.Storage.Path != nil && strings.TrimSpace(*c.Storage.Path) != "" {
		return *c.Storage.Path, nil
	}
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "odai.db"), nil
}

func (c *AppConfig) ModelName() string {
	if c == nil || strings.TrimSpace(c.Model.Name) == "" {
		return DefaultModelName
	}
	return c.Model.Name
}

func (c *AppConfig) RunTimeout() time.Duration {
	if c == nil || c.Session.RunTimeoutSeconds == nil {
		return DefaultRunTimeout
	}
	return time.Duration(*c.Session.RunTimeoutSeconds) * time.Second
}

func (c *AppConfig) ToolTimeout() time.Duration {
	if c == nil || c.Session.ToolTimeoutSeconds == nil {
		return DefaultToolTimeout
	}
	return time.Duration(*c.Session.ToolTimeoutSeconds) * time.Second
}

func (c *AppConfig) MaxToolRounds() int {
	if c == nil || c.Session.MaxToolRounds == nil {
		return DefaultMaxToolRounds
	}
	return *c.Session.MaxToolRounds
}

func (c *AppConfig) MaxParallelTools() int {
	if c == nil || c.Session.MaxParallelTools == nil {
		return DefaultMaxParallelTools
	}
	return *c.Session.MaxParallelTools
}

func ptr[T any](v T) *T { return &v }
