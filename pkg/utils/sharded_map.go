// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"hash/maphash"
	"sync"
)

const defaultNumShards = 64

// ShardedMap is a concurrent map with sharding for reduced lock contention.
// Keys are spread across shards with maphash.
type ShardedMap[K comparable, V any] struct {
	shards []shard[K, V]
	seed   maphash.Seed
}

type shard[K comparable, V any] struct {
	sync.RWMutex
	m map[K]V
}

// ShardedMapOption configures a ShardedMap.
type ShardedMapOption[K comparable, V any] func(*ShardedMap[K, V])

// WithShardCount sets the number of shards.
func WithShardCount[K comparable, V any](count int) ShardedMapOption[K, V] {
	return func(sm *ShardedMap[K, V]) {
		if count < 1 {
			count = 1
		}
		sm.shards = make([]shard[K, V], count)
	}
}

// NewShardedMap creates a new sharded map.
func NewShardedMap[K comparable, V any](opts ...ShardedMapOption[K, V]) *ShardedMap[K, V] {
	sm := &ShardedMap[K, V]{
		shards: make([]shard[K, V], defaultNumShards),
		seed:   maphash.MakeSeed(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	for i := range sm.shards {
		sm.shards[i].m = make(map[K]V)
	}
	return sm
}

func (sm *ShardedMap[K, V]) getShard(key K) *shard[K, V] {
	h := maphash.Comparable(sm.seed, key)
	return &sm.shards[h%uint64(len(sm.shards))]
}

// Load returns the value for a key, or the zero value if not found.
func (sm *ShardedMap[K, V]) Load(key K) (V, bool) {
	s := sm.getShard(key)
	s.RLock()
	v, ok := s.m[key]
	s.RUnlock()
	return v, ok
}

// Store sets a value for a key.
func (sm *ShardedMap[K, V]) Store(key K, value V) {
	s := sm.getShard(key)
	s.Lock()
	s.m[key] = value
	s.Unlock()
}

// LoadOrStore returns the existing value if present, otherwise stores and
// returns the new value. Returns true if the value was loaded.
func (sm *ShardedMap[K, V]) LoadOrStore(key K, value V) (V, bool) {
	s := sm.getShard(key)
	s.Lock()
	defer s.Unlock()

	if v, ok := s.m[key]; ok {
		return v, true
	}
	s.m[key] = value
	return value, false
}

// LoadAndDelete removes key and returns its previous value.
func (sm *ShardedMap[K, V]) LoadAndDelete(key K) (V, bool) {
	s := sm.getShard(key)
	s.Lock()
	v, ok := s.m[key]
	delete(s.m, key)
	s.Unlock()
	return v, ok
}

// Update applies fn to the current value of key under the shard lock and
// stores the result. fn receives ok=false for a missing key.
func (sm *ShardedMap[K, V]) Update(key K, fn func(old V, ok bool) V) V {
	s := sm.getShard(key)
	s.Lock()
	defer s.Unlock()

	old, ok := s.m[key]
	v := fn(old, ok)
	s.m[key] = v
	return v
}

// Delete removes a key from the map.
func (sm *ShardedMap[K, V]) Delete(key K) {
	s := sm.getShard(key)
	s.Lock()
	delete(s.m, key)
	s.Unlock()
}

// Range calls f for each key-value pair in the map.
// If f returns false, iteration stops.
func (sm *ShardedMap[K, V]) Range(f func(key K, value V) bool) {
	for i := range sm.shards {
		s := &sm.shards[i]
		s.RLock()
		for k, v := range s.m {
			if !f(k, v) {
				s.RUnlock()
				return
			}
		}
		s.RUnlock()
	}
}

// Len returns the total number of entries across all shards.
func (sm *ShardedMap[K, V]) Len() int {
	count := 0
	for i := range sm.shards {
		s := &sm.shards[i]
		s.RLock()
		count += len(s.m)
		s.RUnlock()
	}
	return count
}

// DeleteIf deletes entries where the predicate returns true.
// Returns the number of entries deleted.
func (sm *ShardedMap[K, V]) DeleteIf(predicate func(key K, value V) bool) int {
	deleted := 0
	for i := range sm.shards {
		s := &sm.shards[i]
		s.Lock()
		for k, v := range s.m {
			if predicate(k, v) {
				delete(s.m, k)
				deleted++
			}
		}
		s.Unlock()
	}
	return deleted
}

// Clear removes all entries from the map.
func (sm *ShardedMap[K, V]) Clear() {
	for i := range sm.shards {
		s := &sm.shards[i]
		s.Lock()
		clear(s.m)
		s.Unlock()
	}
}

// Keys returns all keys in the map.
// Note: This is not atomic - keys may be added/removed during iteration.
func (sm *ShardedMap[K, V]) Keys() []K {
	keys := make([]K, 0, sm.Len())
	sm.Range(func(key K, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}
