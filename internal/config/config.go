package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/time/rate"
)

// Config holds all client configuration
type Config struct {
	// Endpoints
	APIURL string `env:"API_URL" env-default:"http://localhost:8080/api/v1" env-description:"game service base URL"`
	WSURL  string `env:"WS_URL" env-default:"ws://localhost:8080" env-description:"websocket base URL"`

	// Credentials
	Token string `env:"GOBAN_TOKEN" env-description:"session token to open connections with"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn, error, silent"`

	// Timeouts
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" env-default:"10s"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" env-default:"15s"`

	// Rate Limiting
	RateLimitAPI float64 `env:"RATE_LIMIT_API" env-default:"10"`
	RateBurstAPI int     `env:"RATE_BURST_API" env-default:"20"`
	RateLimitWS  float64 `env:"RATE_LIMIT_WS" env-default:"5"`
	RateBurstWS  int     `env:"RATE_BURST_WS" env-default:"10"`

	// WebSocket
	MaxMessageSize int `env:"MAX_MESSAGE_SIZE" env-default:"4096"`

	// Diagnostics
	JournalSize int    `env:"JOURNAL_SIZE" env-default:"64"`
	UserAgent   string `env:"USER_AGENT" env-default:"goban-live/1.0"`

	// Preview server, disabled when empty
	PreviewAddr string `env:"PREVIEW_ADDR" env-description:"listen address for the board preview, e.g. :8090"`
}

// LoadFromEnv loads configuration from environment variables, falling back to env-default values
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the client cannot run with
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.WSURL, "ws://") && !strings.HasPrefix(c.WSURL, "wss://") {
		return fmt.Errorf("WS_URL must use ws:// or wss://, got %q", c.WSURL)
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("API_URL must use http:// or https://, got %q", c.APIURL)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("MAX_MESSAGE_SIZE must be positive, got %d", c.MaxMessageSize)
	}
	if c.JournalSize <= 0 {
		return fmt.Errorf("JOURNAL_SIZE must be positive, got %d", c.JournalSize)
	}
	return nil
}

// APILimit returns the game service request rate
func (c *Config) APILimit() rate.Limit {
	return limit(c.RateLimitAPI)
}

// WSLimit returns the outbound websocket frame rate
func (c *Config) WSLimit() rate.Limit {
	return limit(c.RateLimitWS)
}

// Usage describes every supported environment variable
func Usage() string {
	text, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return text
}

// non-positive rates disable limiting
func limit(v float64) rate.Limit {
	if v <= 0 {
		return rate.Inf
	}
	return rate.Limit(v)
}
