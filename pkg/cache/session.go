// Package cache holds the two caches the runner and provider registry
// depend on: SessionCache (conversation_id -> LLM SDK session_id) and
// ClientCache (provider client LRU).
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL is the lifetime of a cached session id, per spec.md §4.6.
const DefaultSessionTTL = 24 * time.Hour

// SessionCache maps a conversation id to the LLM SDK session id returned by
// its most recent turn, so the next turn can resume server-side history
// instead of replaying the whole transcript.
type SessionCache interface {
	Get(ctx context.Context, conversationID string) (string, bool, error)
	Set(ctx context.Context, conversationID, sessionID string) error
	Delete(ctx context.Context, conversationID string) error
}

// RedisSessionCache backs SessionCache with go-redis, matching the TTL-keyed
// SETEX/GET/DEL idiom. Used whenever a Redis URL is configured.
type RedisSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionCache wraps an already-connected redis.Client.
func NewRedisSessionCache(client *redis.Client, ttl time.Duration) *RedisSessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionCache{client: client, ttl: ttl}
}

func (c *RedisSessionCache) key(conversationID string) string {
	return "session:" + conversationID
}

func (c *RedisSessionCache) Get(ctx context.Context, conversationID string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.key(conversationID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisSessionCache) Set(ctx context.Context, conversationID, sessionID string) error {
	return c.client.Set(ctx, c.key(conversationID), sessionID, c.ttl).Err()
}

func (c *RedisSessionCache) Delete(ctx context.Context, conversationID string) error {
	return c.client.Del(ctx, c.key(conversationID)).Err()
}

// memEntry is one row of the in-process fallback map.
type memEntry struct {
	sessionID string
	expiresAt time.Time
}

// MemorySessionCache is the in-process TTL-map fallback used when no Redis
// URL is configured (local dev and unit tests), grounded on the teacher's
// session.Manager sync.RWMutex map shape.
type MemorySessionCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySessionCache constructs an empty in-process session cache.
func NewMemorySessionCache(ttl time.Duration) *MemorySessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionCache{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemorySessionCache) Get(ctx context.Context, conversationID string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[conversationID]
	if !ok || c.now().After(e.expiresAt) {
		return "", false, nil
	}
	return e.sessionID, true, nil
}

func (c *MemorySessionCache) Set(ctx context.Context, conversationID, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[conversationID] = memEntry{sessionID: sessionID, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *MemorySessionCache) Delete(ctx context.Context, conversationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, conversationID)
	return nil
}
