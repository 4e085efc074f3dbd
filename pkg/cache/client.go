package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultClientCacheSize and DefaultClientTTL match spec.md §4.13's
// provider-client cache defaults.
const (
	DefaultClientCacheSize = 100
	DefaultClientTTL       = time.Hour
)

// Disposable is implemented by anything the ClientCache can evict; Cleanup
// is called once, on eviction or explicit Purge, mirroring the teacher's
// MCP client Cleanup contract.
type Disposable interface {
	Cleanup() error
}

type clientEntry struct {
	client    Disposable
	expiresAt time.Time
}

// ClientKey identifies a cached provider client.
type ClientKey struct {
	ProjectID    string
	ProviderType string
	ConfigHash   string
}

func (k ClientKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ProjectID, k.ProviderType, k.ConfigHash)
}

// ClientCache is a process-wide LRU of live provider clients. The LRU
// library has no native TTL, so expiry is checked lazily on Get — the same
// lazy-expiry idiom the teacher uses for its MCP tool cache invalidation.
type ClientCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, clientEntry]
	ttl time.Duration
	now func() time.Time
}

// NewClientCache builds an LRU-backed client cache. size/ttl <= 0 fall back
// to the spec defaults (100 entries, 1h).
func NewClientCache(size int, ttl time.Duration) (*ClientCache, error) {
	if size <= 0 {
		size = DefaultClientCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultClientTTL
	}
	cc := &ClientCache{ttl: ttl, now: time.Now}
	l, err := lru.NewWithEvict[string, clientEntry](size, func(_ string, entry clientEntry) {
		_ = entry.client.Cleanup()
	})
	if err != nil {
		return nil, fmt.Errorf("cache: build client LRU: %w", err)
	}
	cc.lru = l
	return cc, nil
}

// Get returns the cached client for key, or (nil, false) if absent or
// expired. An expired entry is evicted (triggering Cleanup) before the miss
// is reported.
func (c *ClientCache) Get(key ClientKey) (Disposable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.String()
	entry, ok := c.lru.Get(k)
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.lru.Remove(k)
		return nil, false
	}
	return entry.client, true
}

// Put inserts or replaces the cached client for key. If an existing entry
// at a different key is evicted to make room, its Cleanup runs via the LRU's
// eviction callback.
func (c *ClientCache) Put(key ClientKey, client Disposable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key.String(), clientEntry{client: client, expiresAt: c.now().Add(c.ttl)})
}

// Purge evicts every cached client, running Cleanup on each.
func (c *ClientCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
