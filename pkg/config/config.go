package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Viper keys. Flags are bound to the same keys by pkg/cli.
const (
	KeyAccessToken     = "konnect.access_token"
	KeyRegion          = "konnect.region"
	KeyBaseURL         = "konnect.base_url"
	KeyRequestTimeout  = "konnect.request_timeout"
	KeyPort            = "server.port"
	KeyPath            = "server.path"
	KeyAllowRemote     = "server.allow_remote"
	KeyAllowedOrigins  = "server.allowed_origins"
	KeySessionTimeout  = "server.session_timeout"
	KeyMaxSessions     = "server.max_sessions"
	KeyKeepalive       = "server.keepalive_interval"
	KeyShutdownTimeout = "server.shutdown_timeout"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyOTLPEndpoint    = "telemetry.otlp_endpoint"
)

// envBindings maps viper keys to their environment variable names.
var envBindings = map[string]string{
	KeyAccessToken:    "KONNECT_ACCESS_TOKEN",
	KeyRegion:         "KONNECT_REGION",
	KeyBaseURL:        "KONNECT_BASE_URL",
	KeyRequestTimeout: "KONNECT_REQUEST_TIMEOUT",
	KeyPort:           "MCP_PORT",
	KeyPath:           "MCP_PATH",
	KeyAllowRemote:    "MCP_ALLOW_REMOTE",
	KeyAllowedOrigins: "MCP_ALLOWED_ORIGINS",
	KeySessionTimeout: "MCP_SESSION_TIMEOUT",
	KeyMaxSessions:    "MCP_MAX_SESSIONS",
	KeyLogLevel:       "LOG_LEVEL",
	KeyLogFormat:      "LOG_FORMAT",
	KeyOTLPEndpoint:   "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
}

// Config is the resolved process configuration.
type Config struct {
	Konnect   KonnectConfig   `mapstructure:"konnect"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// KonnectConfig configures the upstream REST client.
type KonnectConfig struct {
	// AccessToken is a Konnect personal or system access token. Optional:
	// without it every upstream call fails with 401 and is reported as a
	// tool error.
	AccessToken string `mapstructure:"access_token"`

	Region Region `mapstructure:"region"`

	// BaseURL overrides the regional URL (tests, proxies).
	BaseURL string `mapstructure:"base_url"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ServerConfig configures the MCP HTTP endpoint.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	Path              string        `mapstructure:"path"`
	AllowRemote       bool          `mapstructure:"allow_remote"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	SessionTimeout    time.Duration `mapstructure:"session_timeout"`
	MaxSessions       int           `mapstructure:"max_sessions"`
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	// OTLPEndpoint is an OTLP/HTTP traces URL. Empty disables export.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// NewViper returns a viper instance with defaults and environment bindings
// installed.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for key, env := range envBindings {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key, env)
	}
	return v
}

// SetDefaults installs default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyRegion, string(DefaultRegion))
	v.SetDefault(KeyRequestTimeout, 30*time.Second)
	v.SetDefault(KeyPort, 3001)
	v.SetDefault(KeyPath, "/mcp")
	v.SetDefault(KeyAllowRemote, false)
	v.SetDefault(KeyAllowedOrigins, []string{"*"})
	v.SetDefault(KeySessionTimeout, 30*time.Minute)
	v.SetDefault(KeyMaxSessions, 100)
	v.SetDefault(KeyKeepalive, 30*time.Second)
	v.SetDefault(KeyShutdownTimeout, 10*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// Load reads the optional config file, decodes v into a Config and
// validates it.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	region, err := ParseRegion(string(cfg.Konnect.Region))
	if err != nil {
		return nil, err
	}
	cfg.Konnect.Region = region

	// MCP_ALLOWED_ORIGINS is comma-separated, but viper splits env strings on
	// whitespace, so "a, b" decodes as ["a,", "b"]. Rejoin and split on commas.
	cfg.Server.AllowedOrigins = splitCSV(strings.Join(cfg.Server.AllowedOrigins, ","))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Path == "" || c.Server.Path[0] != '/' {
		return fmt.Errorf("server.path must start with '/', got %q", c.Server.Path)
	}
	if c.Server.MaxSessions < 1 {
		return fmt.Errorf("server.max_sessions must be at least 1, got %d", c.Server.MaxSessions)
	}
	if c.Server.SessionTimeout < time.Second {
		return errors.New("server.session_timeout must be at least 1s")
	}
	if c.Konnect.RequestTimeout <= 0 {
		return errors.New("konnect.request_timeout must be positive")
	}
	return nil
}

// KonnectBaseURL returns the explicit base URL override, or the regional URL.
func (c *Config) KonnectBaseURL() string {
	if c.Konnect.BaseURL != "" {
		return strings.TrimRight(c.Konnect.BaseURL, "/")
	}
	return c.Konnect.Region.BaseURL()
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
