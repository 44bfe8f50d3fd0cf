// Package config loads the board's settings from the environment.
package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds settings read from environment variables, falling back to
// local-development defaults.
type Config struct {
	Port                 string        `env:"PORT" envDefault:"8080"`
	APIBaseURL           string        `env:"ACTIVITY_API_URL" envDefault:"http://localhost:8000"`
	APITimeout           time.Duration `env:"ACTIVITY_API_TIMEOUT" envDefault:"0s"`
	BannerTTL            time.Duration `env:"BANNER_TTL" envDefault:"5s"`
	SessionIdleTTL       time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	DefaultLocale        string        `env:"DEFAULT_LOCALE" envDefault:"en"`
	CSRFKey              string        `env:"CSRF_KEY"`
	Environment          string        `env:"APP_ENV" envDefault:"development"`
}

// Load reads a .env file when one exists, then parses and validates the
// environment.
func Load() (*Config, error) {
	// .env is optional; variables may come from the process environment.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("config: ACTIVITY_API_URL invalid (%q): %w", c.APIBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: ACTIVITY_API_URL must be an absolute http(s) URL, got %q", c.APIBaseURL)
	}
	if c.APITimeout < 0 {
		return fmt.Errorf("config: ACTIVITY_API_TIMEOUT cannot be negative")
	}
	if c.BannerTTL <= 0 {
		return fmt.Errorf("config: BANNER_TTL must be positive")
	}
	if c.SessionIdleTTL <= 0 || c.SessionSweepInterval <= 0 {
		return fmt.Errorf("config: SESSION_IDLE_TTL and SESSION_SWEEP_INTERVAL must be positive")
	}
	if strings.TrimSpace(c.DefaultLocale) == "" {
		c.DefaultLocale = "en"
	}
	if c.CSRFKey != "" {
		if _, err := c.CSRFKeyBytes(); err != nil {
			return err
		}
	}
	switch c.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("config: APP_ENV must be development or production, got %q", c.Environment)
	}
	return nil
}

// CSRFKeyBytes decodes CSRF_KEY. It returns nil when no key is configured,
// which disables CSRF protection.
func (c *Config) CSRFKeyBytes() ([]byte, error) {
	if c.CSRFKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.CSRFKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("config: CSRF_KEY must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
