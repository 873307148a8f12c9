package mcp

import (
	"errors"
	"fmt"
	"time"
)

// Config holds MCP server configuration.
type Config struct {
	// Port is the TCP port to listen on.
	Port int `json:"port"`

	// Path is the HTTP endpoint path (e.g., "/mcp").
	Path string `json:"path"`

	// AllowRemote allows connections from non-localhost addresses.
	// Default: false (localhost only).
	AllowRemote bool `json:"allowRemote"`

	// AllowedOrigins is a list of allowed Origin headers.
	// Supports wildcards like "http://localhost:*".
	AllowedOrigins []string `json:"allowedOrigins"`

	// SessionTimeout is the idle timeout for sessions.
	SessionTimeout time.Duration `json:"sessionTimeout"`

	// MaxSessions is the maximum number of concurrent sessions.
	MaxSessions int `json:"maxSessions"`

	// KeepaliveInterval is how often an idle SSE stream gets a comment line.
	KeepaliveInterval time.Duration `json:"keepaliveInterval"`

	// CleanupInterval is how often idle sessions are swept.
	CleanupInterval time.Duration `json:"cleanupInterval"`

	// ReadHeaderTimeout bounds reading request headers. There is no write
	// timeout because SSE streams are long-lived.
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout"`

	// ShutdownTimeout bounds graceful shutdown in Stop.
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:              3001,
		Path:              "/mcp",
		AllowRemote:       false,
		AllowedOrigins:    []string{"*"},
		SessionTimeout:    30 * time.Minute,
		MaxSessions:       100,
		KeepaliveInterval: 30 * time.Second,
		CleanupInterval:   time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}

	if c.Path == "" {
		return errors.New("path cannot be empty")
	}

	if c.Path[0] != '/' {
		return fmt.Errorf("path must start with '/', got %q", c.Path)
	}

	if c.Path == healthPath {
		return fmt.Errorf("path %q is reserved", healthPath)
	}

	if c.MaxSessions < 1 {
		return fmt.Errorf("maxSessions must be at least 1, got %d", c.MaxSessions)
	}

	if c.SessionTimeout < time.Second {
		return errors.New("sessionTimeout must be at least 1 second")
	}

	if c.KeepaliveInterval <= 0 {
		return errors.New("keepaliveInterval must be positive")
	}

	return nil
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	if c.AllowRemote {
		return fmt.Sprintf(":%d", c.Port)
	}
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}
