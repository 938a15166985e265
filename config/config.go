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
	Sources   SourcesConfig
	Pipeline  PipelineConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SourcesConfig holds per-source scraper configuration. Base URLs are
// configurable so tests can point scrapers at local fixtures and so endpoint
// changes don't require a rebuild.
type SourcesConfig struct {
	EBay  EBayConfig  `mapstructure:"ebay"`
	Point PointConfig `mapstructure:"point"`
}

// EBayConfig configures both the page scraper and the optional Browse API client.
type EBayConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	APIToken       string        `mapstructure:"api_token"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PointConfig configures the 130point sales scraper.
type PointConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PipelineConfig holds the orchestrator's time and volume budgets.
type PipelineConfig struct {
	GlobalTimeout      time.Duration `mapstructure:"global_timeout"`
	QueryTimeout       time.Duration `mapstructure:"query_timeout"`
	EarlyExitThreshold int           `mapstructure:"early_exit_threshold"`
	MaxSearchQueries   int           `mapstructure:"max_search_queries"`
	MinMatchScore      float64       `mapstructure:"min_match_score"`
	EnableDebugLogging bool          `mapstructure:"enable_debug_logging"`
}

// CacheConfig holds response-cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds per-IP rate limiting configuration
type RateLimitConfig struct {
	PerIP float64 `mapstructure:"per_ip"` // requests per second
	Burst int     `mapstructure:"burst"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cardcomp/")

	// Environment variable settings
	v.SetEnvPrefix("CARDCOMP")
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
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Source defaults
	v.SetDefault("sources.ebay.base_url", "https://www.ebay.com")
	v.SetDefault("sources.ebay.api_base_url", "https://api.ebay.com/buy/browse/v1")
	v.SetDefault("sources.ebay.api_token", "")
	v.SetDefault("sources.ebay.min_interval", "1500ms")
	v.SetDefault("sources.ebay.request_timeout", "6s")
	v.SetDefault("sources.point.base_url", "https://back.130point.com")
	v.SetDefault("sources.point.min_interval", "2s")
	v.SetDefault("sources.point.request_timeout", "6s")

	// Pipeline defaults
	v.SetDefault("pipeline.global_timeout", "25s")
	v.SetDefault("pipeline.query_timeout", "8s")
	v.SetDefault("pipeline.early_exit_threshold", 3)
	v.SetDefault("pipeline.max_search_queries", 5)
	v.SetDefault("pipeline.min_match_score", 0.25)
	v.SetDefault("pipeline.enable_debug_logging", false)

	// Cache defaults
	v.SetDefault("cache.ttl", "15m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 2.0)
	v.SetDefault("ratelimit.burst", 5)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Pipeline.GlobalTimeout <= 0 {
		return fmt.Errorf("pipeline global_timeout must be positive")
	}

	if config.Pipeline.QueryTimeout <= 0 || config.Pipeline.QueryTimeout >= config.Pipeline.GlobalTimeout {
		return fmt.Errorf("pipeline query_timeout must be positive and shorter than global_timeout")
	}

	if config.Sources.EBay.RequestTimeout >= config.Pipeline.QueryTimeout ||
		config.Sources.Point.RequestTimeout >= config.Pipeline.QueryTimeout {
		return fmt.Errorf("per-request timeouts must be shorter than the per-query timeout")
	}

	if config.Pipeline.EarlyExitThreshold < 1 {
		return fmt.Errorf("pipeline early_exit_threshold must be at least 1")
	}

	if config.Pipeline.MinMatchScore < 0 || config.Pipeline.MinMatchScore >= 1 {
		return fmt.Errorf("pipeline min_match_score must be in [0, 1), got: %v", config.Pipeline.MinMatchScore)
	}

	return nil
}
