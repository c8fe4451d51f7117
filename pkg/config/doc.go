// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings except the Postgres URL.
//
// # Configuration Structure
//
// Server settings:
//
//	GATEWAY_HOST="0.0.0.0"
//	GATEWAY_PORT="8080"
//	GATEWAY_HEALTH_PORT="9090"
//	GATEWAY_READ_TIMEOUT="15s"
//	GATEWAY_WRITE_TIMEOUT="15s"
//	GATEWAY_SHUTDOWN_TIMEOUT="30s"
//
// Key store settings:
//
//	GATEWAY_POSTGRES_URL="postgres://localhost/promptvault?sslmode=disable"
//	GATEWAY_POSTGRES_MAX_CONNS="20"
//	GATEWAY_KEY_CACHE_SIZE="10000"
//	GATEWAY_KEY_CACHE_TTL="30s"  # 0s disables the cache
//
// Counter store settings:
//
//	GATEWAY_REDIS_URL="redis://localhost:6379/0"
//	GATEWAY_REDIS_POOL_SIZE="20"
//
// Rate limiting:
//
//	GATEWAY_RATELIMIT_FAILURE_MODE="open"  # open, closed
//	GATEWAY_RATELIMIT_PREFIX="ratelimit"
//	GATEWAY_PLANS_FILE="/etc/gateway/plans.yaml"
//	GATEWAY_STORE_TIMEOUT="2s"
//	GATEWAY_TOUCH_TIMEOUT="5s"
//
// Observability settings:
//
//	GATEWAY_LOG_LEVEL="info"  # debug, info, warn, error
//	GATEWAY_METRICS_ENABLED="true"
//	GATEWAY_OTEL_ENABLED="true"
//	GATEWAY_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/storage: Uses key store configuration
//   - pkg/ratelimit: Uses rate limiting configuration
//   - pkg/observability: Uses observability configuration
package config
