package rhi

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// HashDesc returns the FNV-64a hash of the canonical encoding of desc along
// with the encoding. RHI objects inside desc are encoded by identity.
func HashDesc(desc any) (uint64, string) {
	key := fmt.Sprintf("%#v", desc)
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64(), key
}

type cacheEntry[T any] struct {
	key   string
	value T
}

// Cache memoizes objects by the content of their description. Values are
// built at most once per distinct description.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[uint64][]cacheEntry[T]
	count   int
	hits    atomic.Uint64
	misses  atomic.Uint64
}

func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[uint64][]cacheEntry[T])}
}

func (c *Cache[T]) lookup(hash uint64, key string) (T, bool) {
	for _, e := range c.entries[hash] {
		if e.key == key {
			return e.value, true
		}
	}
	var zero T
	return zero, false
}

// GetOrCreate returns the value cached for desc or builds it with create. A
// failed create caches nothing.
func (c *Cache[T]) GetOrCreate(desc any, create func() (T, error)) (T, error) {
	hash, key := HashDesc(desc)

	c.mu.RLock()
	v, ok := c.lookup(hash, key)
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have built it while we waited for the lock.
	if v, ok := c.lookup(hash, key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)
	v, err := create()
	if err != nil {
		return v, err
	}
	c.entries[hash] = append(c.entries[hash], cacheEntry[T]{key: key, value: v})
	c.count++
	return v, nil
}

func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

func (c *Cache[T]) Hits() uint64   { return c.hits.Load() }
func (c *Cache[T]) Misses() uint64 { return c.misses.Load() }

// Drain empties the cache, calling fn on every value.
func (c *Cache[T]) Drain(fn func(T)) {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[uint64][]cacheEntry[T])
	c.count = 0
	c.mu.Unlock()
	for _, list := range entries {
		for _, e := range list {
			fn(e.value)
		}
	}
}
