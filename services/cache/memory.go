// Package cachesvc provides the core.Cache implementations.
package cachesvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wartburg/mcsp/core"
)

var nowFunc = time.Now // mockable

type memoryEntry struct {
	data    []byte
	expires time.Time // zero: never
}

// MemoryCache is an in-process core.Cache, used when no Redis URL is configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

var _ core.Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || (!e.expires.IsZero() && nowFunc().After(e.expires)) {
		return core.ErrCacheMiss
	}
	return json.Unmarshal(e.data, dest)
}

func (c *MemoryCache) SetJSON(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expires = nowFunc().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	return nil
}

// New returns a RedisCache when conf.Redis.URL is set, else a MemoryCache.
func New(conf *core.Config) (core.Cache, error) {
	if conf.Redis.URL == "" {
		return NewMemoryCache(), nil
	}
	return NewRedisCache(conf.Redis.URL, "mcsp:")
}
