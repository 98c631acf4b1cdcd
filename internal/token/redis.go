package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyTokenPrefix = "playback:token:"

// RedisCache is a token cache backed by Redis, for deployments where several
// instances must resolve each other's tokens. Expiry uses native key TTLs,
// so there is no sweep to run.
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	singleUse bool
}

// RedisCacheConfig holds configuration for the Redis-backed cache.
type RedisCacheConfig struct {
	Client    *redis.Client
	TTL       time.Duration
	SingleUse bool
}

// NewRedisCache creates a Redis-backed token cache.
func NewRedisCache(cfg *RedisCacheConfig) *RedisCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisCache{
		client:    cfg.Client,
		ttl:       ttl,
		singleUse: cfg.SingleUse,
	}
}

// Issue stores the descriptor under a fresh token with the cache TTL.
func (c *RedisCache) Issue(ctx context.Context, d Descriptor) (string, error) {
	d.IssuedAt = time.Now()

	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal descriptor: %w", err)
	}

	tok := uuid.New().String()
	if err := c.client.Set(ctx, keyTokenPrefix+tok, data, c.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	return tok, nil
}

// Resolve looks up a token, consuming it in single-use mode.
func (c *RedisCache) Resolve(ctx context.Context, tok string) (*Descriptor, error) {
	var (
		data string
		err  error
	)

	if c.singleUse {
		data, err = c.client.GetDel(ctx, keyTokenPrefix+tok).Result()
	} else {
		data, err = c.client.Get(ctx, keyTokenPrefix+tok).Result()
	}

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal descriptor: %w", err)
	}

	return &d, nil
}
