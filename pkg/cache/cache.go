// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache provides a sharded concurrent cache with optional idle
// expiry, and the container handle table built on it.
package cache

import (
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/utils"
)

// Default number of shards for lock striping
const defaultShardCount = 64

// entry wraps a value with its last access time for LRU eviction and idle
// expiry.
type entry[V any] struct {
	value      V
	lastAccess atomic.Int64 // Unix nano timestamp
}

// Cache is a concurrent cache with lock striping.
//
// Entries optionally expire after a period without access, and the cache
// optionally holds at most a fixed number of entries, evicting the least
// recently accessed one when full.
//
//	c := cache.New[uuid.UUID, types.Handle](
//	    cache.WithExpiry[uuid.UUID, types.Handle](30*time.Minute),
//	)
//	defer c.Stop()
type Cache[K comparable, V any] struct {
	store     *utils.ShardedMap[K, *entry[V]]
	numShards int

	// Max size (0 = unlimited)
	maxSize int
	// Idle expiry (0 = no expiry)
	expiry time.Duration
	// onEvict is called for entries removed by expiry or size eviction.
	onEvict func(K, V)

	cleanupTimer *time.Timer
	stopOnce     sync.Once
	stopped      atomic.Bool
}

// Option configures a Cache
type Option[K comparable, V any] func(*Cache[K, V])

// WithMaxSize sets the maximum total number of entries in the cache.
func WithMaxSize[K comparable, V any](maxSize int) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.maxSize = maxSize
	}
}

// WithExpiry sets the idle TTL. An entry not accessed for this long is
// invisible to Get and removed by a background sweep.
func WithExpiry[K comparable, V any](expiry time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.expiry = expiry
	}
}

// WithNumShards sets the number of shards for lock striping.
func WithNumShards[K comparable, V any](numShards int) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.numShards = numShards
	}
}

// WithOnEvict registers a callback for entries the cache removes on its
// own. Explicit Delete calls do not trigger it.
func WithOnEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.onEvict = fn
	}
}

// New creates a new Cache with the given options.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{numShards: defaultShardCount}
	for _, opt := range opts {
		opt(c)
	}
	c.store = utils.NewShardedMap[K, *entry[V]](
		utils.WithShardCount[K, *entry[V]](c.numShards),
	)

	if c.expiry > 0 {
		c.startCleanup()
	}
	return c
}

func (c *Cache[K, V]) startCleanup() {
	c.cleanupTimer = time.AfterFunc(c.expiry, func() {
		c.cleanup()
		if !c.stopped.Load() {
			c.cleanupTimer.Reset(c.expiry)
		}
	})
}

func (c *Cache[K, V]) expired(e *entry[V], now int64) bool {
	return c.expiry > 0 && now-e.lastAccess.Load() > c.expiry.Nanoseconds()
}

// cleanup removes expired entries from all shards
func (c *Cache[K, V]) cleanup() {
	now := time.Now().UnixNano()

	var evicted []*entry[V]
	var keys []K
	c.store.DeleteIf(func(k K, e *entry[V]) bool {
		if !c.expired(e, now) {
			return false
		}
		keys = append(keys, k)
		evicted = append(evicted, e)
		return true
	})

	if c.onEvict != nil {
		for i, k := range keys {
			c.onEvict(k, evicted[i].value)
		}
	}
}

// Stop stops the background sweep. Call this when the cache is no longer
// needed.
func (c *Cache[K, V]) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		if c.cleanupTimer != nil {
			c.cleanupTimer.Stop()
		}
	})
}

// Get retrieves a value and refreshes its access time.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	e, ok := c.load(key)
	if !ok {
		var zero V
		return zero, false
	}
	e.lastAccess.Store(time.Now().UnixNano())
	return e.value, true
}

// Peek retrieves a value without refreshing its access time.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	e, ok := c.load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[K, V]) load(key K) (*entry[V], bool) {
	e, ok := c.store.Load(key)
	if !ok || c.expired(e, time.Now().UnixNano()) {
		return nil, false
	}
	return e, true
}

// Set adds or updates a value in the cache.
func (c *Cache[K, V]) Set(key K, value V) {
	e := &entry[V]{value: value}
	e.lastAccess.Store(time.Now().UnixNano())

	if c.maxSize > 0 && c.store.Len() >= c.maxSize {
		if _, exists := c.store.Load(key); !exists {
			c.evictOldest()
		}
	}
	c.store.Store(key, e)
}

// evictOldest removes the least recently accessed entry from the cache.
func (c *Cache[K, V]) evictOldest() {
	var oldestKey K
	var oldestTime int64
	first := true

	c.store.Range(func(k K, e *entry[V]) bool {
		accessTime := e.lastAccess.Load()
		if first || accessTime < oldestTime {
			oldestKey = k
			oldestTime = accessTime
			first = false
		}
		return true
	})

	if first {
		return
	}
	if e, ok := c.store.LoadAndDelete(oldestKey); ok && c.onEvict != nil {
		c.onEvict(oldestKey, e.value)
	}
}

// Delete removes a key and reports whether it held a live entry.
func (c *Cache[K, V]) Delete(key K) bool {
	e, ok := c.store.LoadAndDelete(key)
	return ok && !c.expired(e, time.Now().UnixNano())
}

// DeleteIf removes live entries matching pred and returns how many it
// removed.
func (c *Cache[K, V]) DeleteIf(pred func(K, V) bool) int {
	now := time.Now().UnixNano()
	return c.store.DeleteIf(func(k K, e *entry[V]) bool {
		return !c.expired(e, now) && pred(k, e.value)
	})
}

// Size returns the number of stored entries, including expired entries not
// yet swept.
func (c *Cache[K, V]) Size() int {
	return c.store.Len()
}

// Clear removes all entries from the cache.
func (c *Cache[K, V]) Clear() {
	c.store.Clear()
}

// Iter returns an iterator over all non-expired cache entries.
func (c *Cache[K, V]) Iter() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		now := time.Now().UnixNano()
		c.store.Range(func(key K, e *entry[V]) bool {
			if c.expired(e, now) {
				return true
			}
			return yield(key, e.value)
		})
	}
}
