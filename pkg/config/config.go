package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/promptvault/gateway/pkg/observability"
	"github.com/promptvault/gateway/pkg/ratelimit"
	"github.com/promptvault/gateway/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Key store configuration
	Storage storage.Config

	// Counter store configuration
	Redis RedisConfig

	// Rate limiting and authentication behaviour
	RateLimit RateLimitConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RedisConfig holds counter store connection settings
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// RateLimitConfig holds limiter and authenticator settings
type RateLimitConfig struct {
	FailureMode ratelimit.FailureMode
	Prefix      string
	PlansFile   string

	// Bound on every key store and counter store call made on the request path
	StoreTimeout time.Duration
	// Bound on the detached last-used update
	TouchTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Redis:         loadRedisConfig(),
		RateLimit:     loadRateLimitConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GATEWAY_HOST", "0.0.0.0"),
		Port:            getEnv("GATEWAY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GATEWAY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GATEWAY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GATEWAY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GATEWAY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("GATEWAY_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads key store configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if pgURL := getEnv("GATEWAY_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("GATEWAY_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("GATEWAY_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}

	if cacheSize := getEnvInt("GATEWAY_KEY_CACHE_SIZE", 0); cacheSize > 0 {
		cfg.KeyCacheSize = cacheSize
	}
	// "0s" is meaningful here: it turns the cache off
	if value := os.Getenv("GATEWAY_KEY_CACHE_TTL"); value != "" {
		if ttl, err := time.ParseDuration(value); err == nil && ttl >= 0 {
			cfg.KeyCacheTTL = ttl
		}
	}

	return cfg
}

// loadRedisConfig loads counter store configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:      getEnv("GATEWAY_REDIS_URL", "redis://localhost:6379/0"),
		Password: getEnv("GATEWAY_REDIS_PASSWORD", ""),
		DB:       getEnvInt("GATEWAY_REDIS_DB", 0),
		PoolSize: getEnvInt("GATEWAY_REDIS_POOL_SIZE", 20),
	}
}

// loadRateLimitConfig loads limiter configuration from environment
func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		FailureMode:  ratelimit.FailureMode(strings.ToLower(getEnv("GATEWAY_RATELIMIT_FAILURE_MODE", string(ratelimit.FailOpen)))),
		Prefix:       getEnv("GATEWAY_RATELIMIT_PREFIX", "ratelimit"),
		PlansFile:    getEnv("GATEWAY_PLANS_FILE", ""),
		StoreTimeout: getEnvDuration("GATEWAY_STORE_TIMEOUT", 2*time.Second),
		TouchTimeout: getEnvDuration("GATEWAY_TOUCH_TIMEOUT", 5*time.Second),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("GATEWAY_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("GATEWAY_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("GATEWAY_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("GATEWAY_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("GATEWAY_OTEL_SERVICE_NAME", "promptvault-gateway"),
		OTelServiceVersion: getEnv("GATEWAY_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("GATEWAY_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.PostgresMinConns > c.Storage.PostgresMaxConns {
		return fmt.Errorf("postgres min conns (%d) exceeds max conns (%d)",
			c.Storage.PostgresMinConns, c.Storage.PostgresMaxConns)
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	if _, err := ratelimit.ParseFailureMode(string(c.RateLimit.FailureMode)); err != nil {
		return err
	}
	if c.RateLimit.Prefix == "" {
		return fmt.Errorf("rate limit key prefix is required")
	}
	if c.RateLimit.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}
	if c.RateLimit.TouchTimeout <= 0 {
		return fmt.Errorf("touch timeout must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
