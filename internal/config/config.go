// Package config loads the auction server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values.
const (
	DefaultServerPort      = 8080
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultWSEnabled       = true
	DefaultAuthMode        = "none"
	DefaultCORSOrigins     = "*"
)

// Environment variable names.
const (
	EnvEnvFile         = "APP_ENV_FILE"
	EnvServerPort      = "APP_SERVER_PORT"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvWSEnabled       = "APP_WS_ENABLED"
	EnvAuthMode        = "APP_AUTH_MODE"
	EnvAPIKeys         = "APP_API_KEYS" //nolint:gosec // env var name, not a credential
	EnvBasicAuthUsers  = "APP_BASIC_AUTH_USERS"
	EnvCORSOrigins     = "APP_CORS_ORIGINS"
)

// Config holds the application configuration.
type Config struct {
	ServerPort      int
	LogLevel        string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	WSEnabled       bool
	CORSOrigins     []string

	// AuthMode guards the auctioneer routes: none, apikey or basic.
	AuthMode string
	// APIKeys in the form "key1:name1,key2:name2".
	APIKeys string
	// BasicAuthUsers in the form "user1:bcrypt_hash,user2:bcrypt_hash".
	BasicAuthUsers string
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidAuthMode        = errors.New("auth mode must be one of: none, apikey, basic")
	ErrInvalidAPIKeyConfig    = errors.New("API keys must be set when auth mode is apikey")
	ErrInvalidBasicAuthConfig = errors.New("basic auth users must be set when auth mode is basic")
	ErrInvalidCORSOrigins     = errors.New("at least one CORS origin must be set")
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from the environment with defaults. When
// APP_ENV_FILE names a dotenv file, its values are loaded first without
// overriding variables already set.
func Load() (*Config, error) {
	if path := os.Getenv(EnvEnvFile); path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ServerPort:      DefaultServerPort,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  DefaultMetricsEnabled,
		WSEnabled:       DefaultWSEnabled,
		CORSOrigins:     splitList(DefaultCORSOrigins),
		AuthMode:        DefaultAuthMode,
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromEnv() error {
	if err := c.loadServerEnv(); err != nil {
		return err
	}
	c.loadAuthEnv()
	return nil
}

func (c *Config) loadServerEnv() error {
	if val := os.Getenv(EnvServerPort); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvServerPort, err)
		}
		c.ServerPort = port
	}

	if val := os.Getenv(EnvLogLevel); val != "" {
		c.LogLevel = strings.ToLower(val)
	}

	if val := os.Getenv(EnvShutdownTimeout); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvShutdownTimeout, err)
		}
		c.ShutdownTimeout = timeout
	}

	for env, target := range map[string]*bool{
		EnvMetricsEnabled: &c.MetricsEnabled,
		EnvWSEnabled:      &c.WSEnabled,
	} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", env, err)
		}
		*target = enabled
	}

	if val := os.Getenv(EnvCORSOrigins); val != "" {
		c.CORSOrigins = splitList(val)
	}

	return nil
}

func (c *Config) loadAuthEnv() {
	if val := os.Getenv(EnvAuthMode); val != "" {
		c.AuthMode = strings.ToLower(val)
	}
	if val := os.Getenv(EnvAPIKeys); val != "" {
		c.APIKeys = val
	}
	if val := os.Getenv(EnvBasicAuthUsers); val != "" {
		c.BasicAuthUsers = val
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if len(c.CORSOrigins) == 0 {
		return ErrInvalidCORSOrigins
	}

	return c.validateAuth()
}

func (c *Config) validateAuth() error {
	switch c.AuthMode {
	case "none":
		return nil
	case "apikey":
		if strings.TrimSpace(c.APIKeys) == "" {
			return ErrInvalidAPIKeyConfig
		}
		return nil
	case "basic":
		if strings.TrimSpace(c.BasicAuthUsers) == "" {
			return ErrInvalidBasicAuthConfig
		}
		return nil
	default:
		return ErrInvalidAuthMode
	}
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
