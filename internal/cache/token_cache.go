package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// TokenCache tracks revoked instructor token IDs
type TokenCache interface {
	// Revoke marks tokenID as logged out. ttl 0 keeps the entry forever.
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type tokenCache struct {
	client *redis.Client
}

// NewTokenCache creates a Redis-backed revocation list
func NewTokenCache(client *redis.Client) TokenCache {
	return &tokenCache{client: client}
}

func (c *tokenCache) key(tokenID string) string {
	return "revoked:" + tokenID
}

func (c *tokenCache) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return errors.Wrap(c.client.Set(ctx, c.key(tokenID), "1", ttl).Err(), "revoke token")
}

func (c *tokenCache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(tokenID)).Result()
	if err != nil {
		return false, errors.Wrap(err, "check revoked token")
	}
	return n > 0, nil
}

type memoryTokenCache struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // zero time = no expiry
}

// NewMemoryTokenCache creates an in-process revocation list
func NewMemoryTokenCache() TokenCache {
	return &memoryTokenCache{revoked: make(map[string]time.Time)}
}

func (c *memoryTokenCache) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	var until time.Time
	if ttl > 0 {
		until = time.Now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[tokenID] = until
	return nil
}

func (c *memoryTokenCache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	until, ok := c.revoked[tokenID]
	if !ok {
		return false, nil
	}
	return until.IsZero() || time.Now().Before(until), nil
}
