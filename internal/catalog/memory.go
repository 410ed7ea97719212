package catalog

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[T any] struct {
	value   T
	expires time.Time
}

// MemoryCache is an in-process cache with a fixed TTL measured from insertion.
// Values are copied on Set and Get so callers never share cached state.
type MemoryCache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry[T]
}

// NewMemoryCache builds a cache whose entries expire ttl after they are written.
// A non-positive ttl keeps entries until they are deleted. A nil now uses time.Now.
func NewMemoryCache[T any](ttl time.Duration, now func() time.Time) *MemoryCache[T] {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache[T]{ttl: ttl, now: now, entries: make(map[string]memoryEntry[T])}
}

// Get returns a copy of the entry under key. An expired entry is evicted and reported as a miss.
func (c *MemoryCache[T]) Get(_ context.Context, key string) (*T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && c.now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	value := entry.value
	return &value, true, nil
}

// Set stores a copy of value under key with a fresh expiry.
func (c *MemoryCache[T]) Set(_ context.Context, key string, value *T) error {
	if value == nil {
		return nil
	}
	entry := memoryEntry[T]{value: *value}
	if c.ttl > 0 {
		entry.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// Delete removes key; a missing key is not an error.
func (c *MemoryCache[T]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired or not.
func (c *MemoryCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Caches groups one cache per entity kind.
type Caches struct {
	Videos      Cache[Video]
	Images      Cache[Image]
	Shows       Cache[Show]
	Seasons     Cache[Season]
	Episodes    Cache[Episode]
	Conversions Cache[Conversion]
}

// MemoryCaches builds an in-process cache set sharing one TTL and clock.
func MemoryCaches(ttl time.Duration, now func() time.Time) Caches {
	return Caches{
		Videos:      NewMemoryCache[Video](ttl, now),
		Images:      NewMemoryCache[Image](ttl, now),
		Shows:       NewMemoryCache[Show](ttl, now),
		Seasons:     NewMemoryCache[Season](ttl, now),
		Episodes:    NewMemoryCache[Episode](ttl, now),
		Conversions: NewMemoryCache[Conversion](ttl, now),
	}
}
