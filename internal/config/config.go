// Package config provides YAML-based configuration loading for the
// lightchat CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration, loaded from lightchat.yaml.
type Config struct {
	// SiteURL is the main site origin for the login handshake.
	SiteURL string `yaml:"site_url"`
	// ChatURL is the chat subsystem origin.
	ChatURL string `yaml:"chat_url"`
	// Email is the login identifier. The password is never stored
	// here; it is prompted for when the cookie session has expired.
	Email string `yaml:"email"`
	// CredentialsPath is the SQLite file holding the cookie blob.
	CredentialsPath string `yaml:"credentials_path"`
	// HistoryDepth is how many messages a room loads on first view.
	HistoryDepth int `yaml:"history_depth"`
	// ReconnectBase and ReconnectMax shape the stream reconnect
	// backoff. Zero for both restores a tight retry loop.
	ReconnectBase time.Duration `yaml:"reconnect_base"`
	ReconnectMax  time.Duration `yaml:"reconnect_max"`
}

// Load reads a YAML config file from path and returns a validated
// Config. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.SiteURL == "" {
		c.SiteURL = "https://meta.stackexchange.com"
	}
	if c.ChatURL == "" {
		c.ChatURL = "https://chat.stackexchange.com"
	}
	if c.CredentialsPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			c.CredentialsPath = filepath.Join(home, ".lightchat", "credentials.db")
		} else {
			c.CredentialsPath = "lightchat-credentials.db"
		}
	}
	if c.HistoryDepth == 0 {
		c.HistoryDepth = 100
	}
	if c.ReconnectBase == 0 && c.ReconnectMax == 0 {
		c.ReconnectBase = 500 * time.Millisecond
		c.ReconnectMax = 30 * time.Second
	}
}

// validate rejects configurations the client cannot run with.
func (c *Config) validate() error {
	if c.HistoryDepth < 0 {
		return fmt.Errorf("config: history_depth must not be negative")
	}
	if c.ReconnectBase < 0 || c.ReconnectMax < 0 {
		return fmt.Errorf("config: reconnect durations must not be negative")
	}
	if c.ReconnectMax > 0 && c.ReconnectBase > c.ReconnectMax {
		return fmt.Errorf("config: reconnect_base exceeds reconnect_max")
	}
	return nil
}
