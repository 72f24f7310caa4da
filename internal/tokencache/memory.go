package tokencache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/driveflow/driveflow/authflow"
)

// MemoryCache is an in-process Cache backed by a TTL cache.
type MemoryCache struct {
	cache *ttlcache.Cache[string, *authflow.TokenResult]
}

// NewMemoryCache creates an in-process token cache and starts its janitor.
func NewMemoryCache() *MemoryCache {
	c := ttlcache.New[string, *authflow.TokenResult]()
	go c.Start()
	return &MemoryCache{cache: c}
}

// Put stores a token until its expiry. Already-expired tokens are ignored.
func (m *MemoryCache) Put(_ context.Context, key string, token *authflow.TokenResult) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	m.cache.Set(key, token, ttl)
	return nil
}

// Get returns the cached token for a key.
func (m *MemoryCache) Get(_ context.Context, key string) (*authflow.TokenResult, error) {
	item := m.cache.Get(key)
	if item == nil {
		return nil, ErrNotFound
	}
	return item.Value(), nil
}

// Delete drops the token for a key.
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Stop halts the cache janitor.
func (m *MemoryCache) Stop() {
	m.cache.Stop()
}
