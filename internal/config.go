package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Obsidian ObsidianConfig    `yaml:"obsidian"`
	Cache    CacheConfig       `yaml:"cache"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Obsidian.Validate(); err != nil {
		return err
	}
	return c.Cache.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	Transport string     `yaml:"transport"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Transport, validation.Required, validation.In(TransportStdio, TransportHTTP)),
	); err != nil {
		return err
	}
	if c.Transport == TransportHTTP {
		return c.HTTP.Validate()
	}
	return nil
}

// HTTPConfig holds HTTP transport configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP listen address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ObsidianConfig holds the connection settings for the Obsidian Local
// REST API.
type ObsidianConfig struct {
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
}

// Validate validates the Obsidian API configuration.
func (c *ObsidianConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.TimeoutSeconds, validation.Min(1), validation.Max(300)),
	)
}

// Timeout returns the per-request timeout.
func (c *ObsidianConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CacheConfig holds the vault cache settings. When Enabled is false the
// cache manager is never constructed and all tools go straight to the
// remote API.
type CacheConfig struct {
	Enabled                bool `yaml:"enabled"`
	RefreshIntervalMinutes int  `yaml:"refresh_interval_minutes"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.RefreshIntervalMinutes, validation.Required, validation.Min(1), validation.Max(1440)),
	)
}

// RefreshInterval returns the periodic refresh interval.
func (c *CacheConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			Transport: TransportStdio,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Obsidian: ObsidianConfig{
			BaseURL:            "https://127.0.0.1:27124",
			APIKey:             os.Getenv("OBSIDIAN_API_KEY"),
			InsecureSkipVerify: true,
			TimeoutSeconds:     10,
		},
		Cache: CacheConfig{
			Enabled:                true,
			RefreshIntervalMinutes: 10,
		},
	}
}
