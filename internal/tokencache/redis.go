package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driveflow/driveflow/authflow"
)

const tokenPrefix = "driveflow:token:"

// RedisCache is a Cache backed by Redis, for deployments where several
// serving processes share granted tokens.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed token cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Put stores a token with a TTL matching its expiry.
func (r *RedisCache) Put(ctx context.Context, key string, token *authflow.TokenResult) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := r.client.Set(ctx, tokenPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// Get returns the cached token for a key.
func (r *RedisCache) Get(ctx context.Context, key string) (*authflow.TokenResult, error) {
	data, err := r.client.Get(ctx, tokenPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting token: %w", err)
	}
	var token authflow.TokenResult
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decoding token: %w", err)
	}
	return &token, nil
}

// Delete drops the token for a key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, tokenPrefix+key).Err(); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// CheckHealth verifies Redis connectivity.
func (r *RedisCache) CheckHealth(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
