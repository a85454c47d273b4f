package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Fanout    FanoutConfig    `mapstructure:"fanout"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RemoteConfig holds the recognition/recommendation service configuration
type RemoteConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory", "redis" or "none"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// FanoutConfig tunes the per-item recommendation fetches
type FanoutConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	MinSimilarity  float64       `mapstructure:"min_similarity"`
}

// BroadcastConfig holds stream buffering configuration
type BroadcastConfig struct {
	NotificationBuffer int `mapstructure:"notification_buffer"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Cache types
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/listcart/")

	// Environment variable settings: server.port -> LISTCART_SERVER_PORT
	v.SetEnvPrefix("LISTCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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

// loadEnvFile loads a .env file from the working directory when present.
// Variables already set in the environment win.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", "15s")

	// Remote service defaults
	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout", "60s")
	v.SetDefault("remote.max_retries", 3)
	v.SetDefault("remote.requests_per_second", 10)
	v.SetDefault("remote.burst", 20)

	// Cache defaults
	v.SetDefault("cache.type", CacheMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "24h")

	// Fan-out defaults
	v.SetDefault("fanout.max_concurrency", 8)
	v.SetDefault("fanout.fetch_timeout", "30s")
	v.SetDefault("fanout.min_similarity", 0)

	// Broadcast defaults
	v.SetDefault("broadcast.notification_buffer", 16)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Remote.BaseURL == "" {
		return fmt.Errorf("remote service base URL is required (set LISTCART_REMOTE_BASE_URL)")
	}

	switch config.Cache.Type {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis' or 'none', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == CacheRedis && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Fanout.MaxConcurrency < 1 {
		return fmt.Errorf("fanout max concurrency must be at least 1, got: %d", config.Fanout.MaxConcurrency)
	}

	if config.Fanout.MinSimilarity < 0 || config.Fanout.MinSimilarity > 100 {
		return fmt.Errorf("fanout min similarity must be between 0 and 100, got: %v", config.Fanout.MinSimilarity)
	}

	if config.Remote.MaxRetries < 0 {
		return fmt.Errorf("remote max retries must not be negative, got: %d", config.Remote.MaxRetries)
	}

	return nil
}
