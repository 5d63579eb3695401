// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestShardedMap_BasicOperations(t *testing.T) {
	t.Parallel()
	sm := NewShardedMap[uuid.UUID, int]()
	k1, k2 := uuid.New(), uuid.New()

	sm.Store(k1, 100)
	sm.Store(k2, 200)

	v, ok := sm.Load(k1)
	assert.True(t, ok)
	assert.Equal(t, 100, v)

	_, ok = sm.Load(uuid.New())
	assert.False(t, ok)
	assert.Equal(t, 2, sm.Len())

	sm.Delete(k1)
	_, ok = sm.Load(k1)
	assert.False(t, ok)
	assert.Equal(t, 1, sm.Len())

	old, ok := sm.LoadAndDelete(k2)
	assert.True(t, ok)
	assert.Equal(t, 200, old)
	assert.Zero(t, sm.Len())
}

func TestShardedMap_LoadOrStore(t *testing.T) {
	t.Parallel()
	sm := NewShardedMap[string, string](WithShardCount[string, string](4))

	v, loaded := sm.LoadOrStore("key", "value1")
	assert.False(t, loaded)
	assert.Equal(t, "value1", v)

	v, loaded = sm.LoadOrStore("key", "value2")
	assert.True(t, loaded)
	assert.Equal(t, "value1", v)
}

func TestShardedMap_Update(t *testing.T) {
	t.Parallel()
	sm := NewShardedMap[string, int]()
	incr := func(old int, ok bool) int {
		if !ok {
			return 1
		}
		return old + 1
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sm.Update("counter", incr)
		}()
	}
	wg.Wait()

	v, _ := sm.Load("counter")
	assert.Equal(t, 50, v)
}

func TestShardedMap_RangeAndDeleteIf(t *testing.T) {
	t.Parallel()
	sm := NewShardedMap[int, int](WithShardCount[int, int](0))
	for i := 0; i < 100; i++ {
		sm.Store(i, i)
	}

	count := 0
	sm.Range(func(_, _ int) bool {
		count++
		return count < 10
	})
	assert.Equal(t, 10, count)

	deleted := sm.DeleteIf(func(_, v int) bool { return v%2 == 0 })
	assert.Equal(t, 50, deleted)
	assert.Len(t, sm.Keys(), 50)
	sm.Range(func(_, v int) bool {
		assert.Equal(t, 1, v%2)
		return true
	})

	sm.Clear()
	assert.Zero(t, sm.Len())
}

func TestShardedMap_Concurrent(t *testing.T) {
	t.Parallel()
	sm := NewShardedMap[int, int]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sm.Store(n, n)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, sm.Len())

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			v, ok := sm.Load(n)
			assert.True(t, ok)
			assert.Equal(t, n, v)
		}(i)
	}
	wg.Wait()
}

func BenchmarkShardedMap_Load(b *testing.B) {
	sm := NewShardedMap[uuid.UUID, int]()
	keys := make([]uuid.UUID, 1024)
	for i := range keys {
		keys[i] = uuid.New()
		sm.Store(keys[i], i)
	}
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			sm.Load(keys[i%len(keys)])
			i++
		}
	})
}
