package storage

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/promptvault/gateway/pkg/auth"
	"github.com/promptvault/gateway/pkg/observability"
)

// CachedKeyStore puts an expiring LRU in front of a KeyStore lookup.
// Only hits are cached, so new keys are visible at once; the TTL bounds
// how long a revoked or changed key keeps working.
type CachedKeyStore struct {
	next    auth.KeyStore
	cache   *lru.LRU[string, auth.APIKeyCredential]
	metrics *observability.Metrics
}

// NewCachedKeyStore wraps next with a cache of size entries living ttl
func NewCachedKeyStore(next auth.KeyStore, size int, ttl time.Duration, metrics *observability.Metrics) *CachedKeyStore {
	if size <= 0 {
		size = 1000
	}
	return &CachedKeyStore{
		next:    next,
		cache:   lru.NewLRU[string, auth.APIKeyCredential](size, nil, ttl),
		metrics: metrics,
	}
}

// FindByHash implements auth.KeyStore
func (c *CachedKeyStore) FindByHash(ctx context.Context, keyHash string) (*auth.APIKeyCredential, error) {
	if cred, ok := c.cache.Get(keyHash); ok {
		c.metrics.RecordKeyCacheLookup(true)
		return &cred, nil
	}
	c.metrics.RecordKeyCacheLookup(false)

	cred, err := c.next.FindByHash(ctx, keyHash)
	if err != nil {
		return nil, err
	}
	if cred != nil {
		c.cache.Add(keyHash, *cred)
	}
	return cred, nil
}

// TouchLastUsed implements auth.KeyStore
func (c *CachedKeyStore) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	return c.next.TouchLastUsed(ctx, keyID, at)
}

// Invalidate drops a cached credential
func (c *CachedKeyStore) Invalidate(keyHash string) {
	c.cache.Remove(keyHash)
}

// Len returns the number of cached credentials
func (c *CachedKeyStore) Len() int {
	return c.cache.Len()
}
