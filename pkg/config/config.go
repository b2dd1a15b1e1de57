// Package config loads and persists the talon configuration file and cron
// batch definitions, and watches the config for live edits.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// DefaultDirName is the config directory under the user's home.
const DefaultDirName = ".talon"

// FileName is the config file name inside the config directory.
const FileName = "config.toml"

// Config is the persisted client configuration (~/.talon/config.toml).
type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
	Client  ClientConfig  `toml:"client"`
	Log     LogConfig     `toml:"log"`
}

// GatewayConfig describes how to reach and authenticate with the gateway.
type GatewayConfig struct {
	URL      string `toml:"url"`
	AuthMode string `toml:"auth_mode"` // token or password
	Token    string `toml:"token,omitempty"`
	Password string `toml:"password,omitempty"`
}

// ClientConfig holds local identity settings.
type ClientConfig struct {
	ID           string `toml:"id,omitempty"`
	DefaultAgent string `toml:"default_agent,omitempty"`
}

// LogConfig controls the event log.
type LogConfig struct {
	Path    string `toml:"path,omitempty"`
	Enabled bool   `toml:"enabled"`
}

// Dir returns the config directory, honoring TALON_DIR for tests and
// alternate setups.
func Dir() (string, error) {
	if dir := os.Getenv("TALON_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	return Config{
		Gateway: GatewayConfig{
			URL:      "ws://127.0.0.1:18789",
			AuthMode: "token",
		},
		Log: LogConfig{Enabled: true},
	}
}

// Load reads the config file at path, applying defaults for a missing file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating the directory if needed. The
// file is written 0600 since it carries credentials.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
