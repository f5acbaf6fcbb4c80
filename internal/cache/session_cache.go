package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"quizwrap/internal/model"
)

// SessionCache stores one SessionState per connected client.
// Get returns (nil, nil) for unknown or expired clients.
type SessionCache interface {
	Set(ctx context.Context, state *model.SessionState) error
	Get(ctx context.Context, clientID string) (*model.SessionState, error)
	Delete(ctx context.Context, clientID string) error
	PurgeExpired(ctx context.Context) (int, error)
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionCache creates a Redis-backed session cache. Entries expire
// ttl after their last write.
func NewSessionCache(client *redis.Client, ttl time.Duration) SessionCache {
	return &sessionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *sessionCache) key(clientID string) string {
	return "session:" + clientID
}

func (c *sessionCache) Set(ctx context.Context, state *model.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}
	if err := c.client.Set(ctx, c.key(state.ClientID), data, c.ttl).Err(); err != nil {
		return errors.Wrapf(err, "save session %s", state.ClientID)
	}
	return nil
}

func (c *sessionCache) Get(ctx context.Context, clientID string) (*model.SessionState, error) {
	data, err := c.client.Get(ctx, c.key(clientID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load session %s", clientID)
	}
	var state model.SessionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, errors.Wrap(err, "unmarshal session")
	}
	return &state, nil
}

func (c *sessionCache) Delete(ctx context.Context, clientID string) error {
	return errors.Wrapf(c.client.Del(ctx, c.key(clientID)).Err(), "delete session %s", clientID)
}

// PurgeExpired is a no-op: Redis expires keys itself
func (c *sessionCache) PurgeExpired(ctx context.Context) (int, error) {
	return 0, nil
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

type memorySessionCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewMemorySessionCache creates an in-process session cache. Expired entries
// are hidden from Get and removed by PurgeExpired.
func NewMemorySessionCache(ttl time.Duration) SessionCache {
	return &memorySessionCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

func (c *memorySessionCache) Set(ctx context.Context, state *model.SessionState) error {
	// stored as JSON so callers never share a pointer with the cache
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[state.ClientID] = memoryEntry{data: data, expiresAt: c.nowFunc().Add(c.ttl)}
	return nil
}

func (c *memorySessionCache) Get(ctx context.Context, clientID string) (*model.SessionState, error) {
	c.mu.Lock()
	entry, ok := c.entries[clientID]
	c.mu.Unlock()
	if !ok || !c.nowFunc().Before(entry.expiresAt) {
		return nil, nil
	}
	var state model.SessionState
	if err := json.Unmarshal(entry.data, &state); err != nil {
		return nil, errors.Wrap(err, "unmarshal session")
	}
	return &state, nil
}

func (c *memorySessionCache) Delete(ctx context.Context, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, clientID)
	return nil
}

func (c *memorySessionCache) PurgeExpired(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.nowFunc()
	purged := 0
	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
			purged++
		}
	}
	return purged, nil
}
