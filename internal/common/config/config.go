// Package config provides configuration management for the remoteclaw
// gateway. It supports loading configuration from environment variables,
// config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/remoteclaw/remoteclaw/internal/agent/auth"
	"github.com/remoteclaw/remoteclaw/internal/agent/runtime"
)

// Config holds all configuration sections for the gateway.
type Config struct {
	Logging  LoggingConfig               `mapstructure:"logging"`
	NATS     NATSConfig                  `mapstructure:"nats"`
	Session  SessionConfig               `mapstructure:"session"`
	Auth     auth.Config                 `mapstructure:"auth"`
	Defaults DefaultsConfig              `mapstructure:"defaults"`
	Backends map[string]*runtime.Backend `mapstructure:"backends"`
	Tracing  TracingConfig               `mapstructure:"tracing"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// NATSConfig holds NATS messaging configuration. An empty URL selects the
// in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// SessionConfig holds session map configuration.
type SessionConfig struct {
	Dir     string `mapstructure:"dir"`
	TTLDays int    `mapstructure:"ttlDays"`
}

// TTL returns the session time-to-live as a time.Duration.
func (s *SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLDays) * 24 * time.Hour
}

// DefaultsConfig holds the per-turn defaults the channel bridge applies when
// a message carries no overrides.
type DefaultsConfig struct {
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	MaxTurns     int    `mapstructure:"maxTurns"`
	TimeoutMs    int    `mapstructure:"timeoutMs"`
	WorkspaceDir string `mapstructure:"workspaceDir"`
}

// Timeout returns the total turn timeout as a time.Duration.
func (d *DefaultsConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// TracingConfig holds OpenTelemetry export configuration.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"serviceName"`
}

// detectDefaultLogFormat returns the appropriate log format based on
// environment: "json" for production-like environments, "text" for terminals.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("REMOTECLAW_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "remoteclaw")
	v.SetDefault("nats.maxReconnects", 10)

	// Session map defaults
	v.SetDefault("session.dir", defaultHomePath("sessions"))
	v.SetDefault("session.ttlDays", 7)

	// Auth defaults
	v.SetDefault("auth.storePath", defaultHomePath("auth.json"))

	// Turn defaults
	v.SetDefault("defaults.provider", "claude")
	v.SetDefault("defaults.model", "")
	v.SetDefault("defaults.maxTurns", 0)
	v.SetDefault("defaults.timeoutMs", 300_000)
	v.SetDefault("defaults.workspaceDir", ".")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.serviceName", "remoteclaw")
}

func defaultHomePath(parts ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	elems := append([]string{home, ".remoteclaw"}, parts...)
	return strings.Join(elems, string(os.PathSeparator))
}

// Load reads configuration from environment variables, config file, and
// defaults. Environment variables use the prefix REMOTECLAW_ with snake_case
// naming. The config file is config.yaml in the current directory or
// /etc/remoteclaw/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default
// locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("REMOTECLAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for snake_case env vars (camelCase config keys).
	// AutomaticEnv does not handle camelCase to SNAKE_CASE conversion.
	_ = v.BindEnv("session.ttlDays", "REMOTECLAW_SESSION_TTL_DAYS")
	_ = v.BindEnv("auth.storePath", "REMOTECLAW_AUTH_STORE_PATH")
	_ = v.BindEnv("defaults.timeoutMs", "REMOTECLAW_DEFAULTS_TIMEOUT_MS")
	_ = v.BindEnv("defaults.workspaceDir", "REMOTECLAW_DEFAULTS_WORKSPACE_DIR")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		if strings.HasSuffix(configPath, ".yaml") || strings.HasSuffix(configPath, ".yml") {
			v.SetConfigFile(configPath)
		} else {
			v.AddConfigPath(configPath)
		}
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/remoteclaw/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if cfg.Session.TTLDays <= 0 {
		errs = append(errs, "session.ttlDays must be positive")
	}
	if cfg.Defaults.TimeoutMs < 0 {
		errs = append(errs, "defaults.timeoutMs must not be negative")
	}
	if cfg.Defaults.Provider == "" {
		errs = append(errs, "defaults.provider is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
