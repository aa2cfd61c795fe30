package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type CacheItem[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Cache is a TTL map safe for concurrent use.
type Cache[V any] struct {
	mu    sync.RWMutex
	items map[string]CacheItem[V]
	ttl   time.Duration
	now   func() time.Time
}

func New[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		items: make(map[string]CacheItem[V]),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = CacheItem[V]{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !exists {
		return zero, false
	}

	if c.now().After(item.ExpiresAt) {
		c.mu.Lock()
		// a Set may have replaced the item since the read lock was released
		if current, ok := c.items[key]; ok && c.now().After(current.ExpiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return item.Value, true
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Key hashes the parts into a fixed-size cache key.
func Key(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// Janitor removes expired items every interval until ctx is done.
func (c *Cache[V]) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Cache[V]) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, key)
		}
	}
}
