package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Scraper   ScraperConfig
	Browser   BrowserConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
}

// CatalogConfig points at the tracked-product list.
type CatalogConfig struct {
	File string `mapstructure:"file"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ScraperConfig holds the tuning knobs of the synchronization engine.
type ScraperConfig struct {
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	ConcurrencyLimit int           `mapstructure:"concurrency_limit"`
	MinRequestDelay  time.Duration `mapstructure:"min_request_delay"`
	MaxRequestDelay  time.Duration `mapstructure:"max_request_delay"`
	BaseBackoff      time.Duration `mapstructure:"base_backoff"`
	BatchPause       time.Duration `mapstructure:"batch_pause"`
}

// BrowserConfig holds headless-browser automation configuration.
type BrowserConfig struct {
	Mode     string `mapstructure:"mode"` // "browser" or "http"
	Bin      string `mapstructure:"bin"`  // optional explicit browser binary
	Headless bool   `mapstructure:"headless"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP        int     `mapstructure:"per_ip"`        // requests/minute per client IP
	VendorPerSec float64 `mapstructure:"vendor_per_sec"` // outbound requests/second per vendor domain
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricesync/")

	// Environment variable settings
	v.SetEnvPrefix("PRICESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Scraper defaults
	v.SetDefault("scraper.cache_ttl", "1800s")
	v.SetDefault("scraper.fetch_timeout", "15s")
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.concurrency_limit", 2)
	v.SetDefault("scraper.min_request_delay", "2s")
	v.SetDefault("scraper.max_request_delay", "5s")
	v.SetDefault("scraper.base_backoff", "1s")
	v.SetDefault("scraper.batch_pause", "3s")

	// Browser defaults
	v.SetDefault("browser.mode", "browser")
	v.SetDefault("browser.headless", true)

	// Catalog defaults
	v.SetDefault("catalog.file", "products.yaml")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.vendor_per_sec", 0.5)
}

// validate validates the configuration
func validate(config *Config) error {
	s := config.Scraper

	if s.CacheTTL <= 0 {
		return fmt.Errorf("scraper.cache_ttl must be positive, got: %s", s.CacheTTL)
	}

	if s.FetchTimeout <= 0 {
		return fmt.Errorf("scraper.fetch_timeout must be positive, got: %s", s.FetchTimeout)
	}

	if s.MaxRetries < 1 {
		return fmt.Errorf("scraper.max_retries must be at least 1, got: %d", s.MaxRetries)
	}

	// Vendor rate limits cap the useful window size; more than 3 concurrent
	// fetches against hobby-electronics vendors invites blocking.
	if s.ConcurrencyLimit < 1 || s.ConcurrencyLimit > 3 {
		return fmt.Errorf("scraper.concurrency_limit must be between 1 and 3, got: %d", s.ConcurrencyLimit)
	}

	if s.MinRequestDelay < 0 || s.MaxRequestDelay < s.MinRequestDelay {
		return fmt.Errorf("scraper request delay range invalid: min=%s max=%s", s.MinRequestDelay, s.MaxRequestDelay)
	}

	if config.Browser.Mode != "browser" && config.Browser.Mode != "http" {
		return fmt.Errorf("browser.mode must be 'browser' or 'http', got: %s", config.Browser.Mode)
	}

	return nil
}
