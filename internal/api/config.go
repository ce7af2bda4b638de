// Package api provides the HTTP server of APLOSE. The JSON endpoints live in
// the v1 subpackage.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 60 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "50M"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Listen is the host:port the server binds to.
	Listen string

	// AllowedOrigins enables CORS for these origins when non-empty.
	AllowedOrigins []string

	// Report downloads on large campaigns can take minutes, hence the
	// generous write timeout.
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string

	Debug bool
}

// DefaultConfig returns a Config with the default timeouts.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "0.0.0.0:8000",
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings == nil {
		return cfg
	}

	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	if settings.WebServer.BodyLimit != "" {
		cfg.BodyLimit = settings.WebServer.BodyLimit
	}
	if settings.WebServer.CORS.Enabled {
		cfg.AllowedOrigins = settings.WebServer.CORS.AllowOrigins
		if len(cfg.AllowedOrigins) == 0 {
			cfg.AllowedOrigins = []string{"*"}
		}
	}
	cfg.Debug = settings.WebServer.Debug

	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: address=%s, cors=%v, debug=%v",
		c.Listen, len(c.AllowedOrigins) > 0, c.Debug)
}
