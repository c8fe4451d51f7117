package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up record does not exist
var ErrNotFound = errors.New("not found")

// App is an application within a workspace, addressed by slug in API paths
type App struct {
	ID          string
	WorkspaceID string
	Slug        string
}

// AppStore looks up apps
type AppStore interface {
	// FindBySlug returns the app with slug in workspaceID, or ErrNotFound
	FindBySlug(ctx context.Context, workspaceID, slug string) (*App, error)
}

// Config for the Postgres backend
type Config struct {
	PostgresURL         string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration
	PostgresMaxLifetime time.Duration
	PostgresMaxIdleTime time.Duration

	// Credential cache; a zero TTL disables it
	KeyCacheSize int
	KeyCacheTTL  time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		PostgresMaxConns:    20,
		PostgresMinConns:    2,
		PostgresTimeout:     10 * time.Second,
		PostgresMaxLifetime: 30 * time.Minute,
		PostgresMaxIdleTime: 5 * time.Minute,
		KeyCacheSize:        10_000,
		KeyCacheTTL:         30 * time.Second,
	}
}
