// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHandleTable_OpenClose(t *testing.T) {
	t.Parallel()
	ht := NewHandleTable(HandleTableConfig{})
	defer ht.Stop()

	cont := uuid.New()
	h1, err := ht.Open(cont, types.OpenReadWrite)
	require.NoError(t, err)
	h2, err := ht.Open(cont, types.OpenReadOnly)
	require.NoError(t, err)
	_, err = ht.Open(uuid.New(), types.OpenReadOnly)
	require.NoError(t, err)

	assert.NotEqual(t, h1.ID, h2.ID)
	assert.Equal(t, 2, ht.Count(cont))
	assert.Equal(t, 3, ht.Len())

	got, ok := ht.Get(h1.ID)
	require.True(t, ok)
	assert.Equal(t, h1, got)
	assert.True(t, got.Flags.Writable())

	closed, ok := ht.Close(h1.ID)
	require.True(t, ok)
	assert.Equal(t, cont, closed.ContainerID)
	_, ok = ht.Close(h1.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, ht.Count(cont))

	act := ht.Activity(cont)
	assert.NotZero(t, act.OpenedAt)
	assert.GreaterOrEqual(t, act.ClosedAt, act.OpenedAt)
}

func TestHandleTable_Evict(t *testing.T) {
	t.Parallel()
	ht := NewHandleTable(HandleTableConfig{IdleTTL: -1})
	defer ht.Stop()

	cont, other := uuid.New(), uuid.New()
	for i := 0; i < 3; i++ {
		_, err := ht.Open(cont, types.OpenReadOnly)
		require.NoError(t, err)
	}
	kept, err := ht.Open(other, types.OpenReadOnly)
	require.NoError(t, err)

	assert.Equal(t, 3, ht.Evict(cont))
	assert.Zero(t, ht.Count(cont))
	_, ok := ht.Get(kept.ID)
	assert.True(t, ok)

	ht.Forget(cont)
	assert.Equal(t, Activity{}, ht.Activity(cont))
}

func TestHandleTable_MaxHandles(t *testing.T) {
	t.Parallel()
	ht := NewHandleTable(HandleTableConfig{MaxHandles: 2})
	defer ht.Stop()

	cont := uuid.New()
	h, err := ht.Open(cont, types.OpenReadOnly)
	require.NoError(t, err)
	_, err = ht.Open(cont, types.OpenReadOnly)
	require.NoError(t, err)
	_, err = ht.Open(cont, types.OpenReadOnly)
	assert.ErrorIs(t, err, ErrTooManyHandles)

	ht.Close(h.ID)
	_, err = ht.Open(cont, types.OpenReadOnly)
	assert.NoError(t, err)
}

func TestHandleTable_IdleExpiry(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ht := NewHandleTable(HandleTableConfig{IdleTTL: time.Minute})
		defer ht.Stop()

		cont := uuid.New()
		busy, err := ht.Open(cont, types.OpenReadWrite)
		require.NoError(t, err)
		idle, err := ht.Open(cont, types.OpenReadOnly)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			time.Sleep(40 * time.Second)
			_, ok := ht.Get(busy.ID)
			require.True(t, ok)
		}

		_, ok := ht.Get(idle.ID)
		assert.False(t, ok)
		assert.Equal(t, 1, ht.Count(cont))

		time.Sleep(2*time.Minute + time.Second)
		synctest.Wait()
		assert.Zero(t, ht.Len())
		assert.NotZero(t, ht.Activity(cont).ClosedAt)
	})
}

func TestHandleTable_Concurrent(t *testing.T) {
	t.Parallel()
	ht := NewHandleTable(HandleTableConfig{})
	defer ht.Stop()

	cont := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := ht.Open(cont, types.OpenReadOnly)
			assert.NoError(t, err)
			_, ok := ht.Close(h.ID)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Zero(t, ht.Count(cont))
}

func TestHandleTable_ConcurrentOpenAtCapacity(t *testing.T) {
	t.Parallel()
	const limit = 4
	ht := NewHandleTable(HandleTableConfig{MaxHandles: limit})
	defer ht.Stop()

	cont := uuid.New()
	var (
		wg      sync.WaitGroup
		opened  atomic.Int32
		refused atomic.Int32
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ht.Open(cont, types.OpenReadOnly)
			switch {
			case err == nil:
				opened.Add(1)
			case errors.Is(err, ErrTooManyHandles):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(limit), opened.Load())
	assert.Equal(t, int32(64-limit), refused.Load())
	assert.Equal(t, limit, ht.Count(cont))
}
