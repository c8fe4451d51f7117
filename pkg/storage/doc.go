// Package storage defines the read-side persistence the gateway needs beyond
// API keys: app lookup by slug. It also provides CachedKeyStore, an expiring
// LRU in front of any auth.KeyStore.
//
// The PostgreSQL implementations live in the postgres subpackage. Key lookups
// join api_keys with workspaces so that the plan comes from a single query:
//
//	db, err := postgres.Open(ctx, cfg.Storage)
//	keys := storage.NewCachedKeyStore(postgres.NewKeyStore(db), cfg.Storage.KeyCacheSize, cfg.Storage.KeyCacheTTL, metrics)
//	apps := postgres.NewAppStore(db)
package storage
