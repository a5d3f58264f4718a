package api

import (
	"fmt"
	"time"
)

// Config holds HTTP API settings.
type Config struct {
	Address string `json:"address"`
	// CORSOrigins lists the allowed browser origins. Empty disables CORS headers.
	CORSOrigins           []string `json:"cors_origins"`
	ReleaseMode           bool     `json:"release_mode"`
	ReadTimeoutSeconds    int      `json:"read_timeout_seconds"`
	MaxBodyBytes          int64    `json:"max_body_bytes"`
	ShutdownTimeoutSecond int      `json:"shutdown_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ReadTimeoutSeconds == 0 {
		c.ReadTimeoutSeconds = 30
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 8 << 20
	}
	if c.ShutdownTimeoutSecond == 0 {
		c.ShutdownTimeoutSecond = 5
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("api address is required")
	}
	if c.ReadTimeoutSeconds < 0 || c.MaxBodyBytes < 0 || c.ShutdownTimeoutSecond < 0 {
		return fmt.Errorf("api limits must be non-negative")
	}
	return nil
}

func (c Config) readTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c Config) shutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecond) * time.Second
}
