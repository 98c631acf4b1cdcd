package token

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCache is the in-process token cache: a mutex-guarded map with lazy
// expiry. Suitable for single-instance deployments; use RedisCache when
// several instances must share tokens.
type MemoryCache struct {
	mu        sync.Mutex
	entries   map[string]Descriptor
	ttl       time.Duration
	singleUse bool

	now func() time.Time // injectable for tests
}

// MemoryCacheConfig holds configuration for the in-memory cache.
type MemoryCacheConfig struct {
	TTL       time.Duration
	SingleUse bool
}

// NewMemoryCache creates an in-memory token cache.
func NewMemoryCache(cfg *MemoryCacheConfig) *MemoryCache {
	if cfg == nil {
		cfg = &MemoryCacheConfig{}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &MemoryCache{
		entries:   make(map[string]Descriptor),
		ttl:       ttl,
		singleUse: cfg.SingleUse,
		now:       time.Now,
	}
}

// Issue stores the descriptor under a fresh token and returns it.
func (c *MemoryCache) Issue(_ context.Context, d Descriptor) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()

	// uuid collisions are effectively impossible, but the contract says
	// unique among live tokens, so check anyway.
	var tok string
	for {
		tok = uuid.New().String()
		if _, exists := c.entries[tok]; !exists {
			break
		}
	}

	d.IssuedAt = c.now()
	c.entries[tok] = d
	return tok, nil
}

// Resolve looks up a token after sweeping expired entries.
func (c *MemoryCache) Resolve(_ context.Context, tok string) (*Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()

	d, ok := c.entries[tok]
	if !ok {
		return nil, ErrTokenNotFound
	}

	if c.singleUse {
		delete(c.entries, tok)
	}

	return &d, nil
}

// Len returns the number of live entries. Used by health checks and tests.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	return len(c.entries)
}

// sweepLocked removes entries past the TTL. Caller holds c.mu.
func (c *MemoryCache) sweepLocked() {
	cutoff := c.now().Add(-c.ttl)
	for tok, d := range c.entries {
		if d.IssuedAt.Before(cutoff) {
			delete(c.entries, tok)
		}
	}
}
