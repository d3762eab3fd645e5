package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port int `toml:"port"`
}

type APIConfig struct {
	BaseURL string `toml:"base_url"` // remote PathLog REST backend, e.g. https://api.pathlog.app/api
	Timeout int    `toml:"timeout"`  // request timeout in seconds, 0 means transport default
}

type SessionConfig struct {
	Secret     string `toml:"secret"`      // for signing local session tokens
	ExpiryHrs  int    `toml:"expiry_hrs"`  // browser session lifetime
	CookieName string `toml:"cookie_name"` // session cookie name
}

type StorageConfig struct {
	DataDir string `toml:"data_dir"` // bbolt database location
}

type EncryptionConfig struct {
	Key string `toml:"key"` // 32-byte key for sealing bearer tokens at rest
}

type RateLimitConfig struct {
	Requests int `toml:"requests"` // per window per IP
	WindowS  int `toml:"window_s"` // window in seconds
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	API        APIConfig        `toml:"api"`
	Session    SessionConfig    `toml:"session"`
	Storage    StorageConfig    `toml:"storage"`
	Encryption EncryptionConfig `toml:"encryption"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Port = 3000
	config.API.BaseURL = "http://localhost:8000/api"
	config.Session.ExpiryHrs = 24
	config.Session.CookieName = "pathlog_session"
	config.Storage.DataDir = "./data"
	config.RateLimit.Requests = 100
	config.RateLimit.WindowS = 60

	// Load config file
	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return &config, nil
}

// Validate checks the fields no default can cover.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("invalid api base_url %q: %w", c.API.BaseURL, err)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required")
	}
	if c.Encryption.Key != "" && len(c.Encryption.Key) != 32 {
		return fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(c.Encryption.Key))
	}
	return nil
}

// SessionExpiry returns the configured browser session lifetime.
func (c *Config) SessionExpiry() time.Duration {
	return time.Duration(c.Session.ExpiryHrs) * time.Hour
}

// APITimeout returns the outbound request timeout, or zero for the
// transport default.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

// RateLimitWindow returns the limiter window.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowS) * time.Second
}
