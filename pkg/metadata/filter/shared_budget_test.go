// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package filter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// newTestBudget returns a budget with a clock the test advances by hand.
func newTestBudget(t *testing.T, cfg SharedBudgetConfig) (*SharedBudget, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr, client := setupTestRedis(t)
	t.Cleanup(func() { client.Close() })

	b := NewSharedBudgetWithClient(client, cfg)
	now := time.UnixMilli(1700000000000)
	b.now = func() time.Time { return now }
	return b, mr, &now
}

func TestSharedBudgetBurstThenDeny(t *testing.T) {
	t.Parallel()

	b, _, _ := newTestBudget(t, DefaultSharedBudgetConfig())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		d, err := b.Take(ctx, ClassWrite, "10.0.0.1", 2, 4)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
	}
	d, err := b.Take(ctx, ClassWrite, "10.0.0.1", 2, 4)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 500*time.Millisecond, d.RetryAfter)
}

func TestSharedBudgetRefills(t *testing.T) {
	t.Parallel()

	b, _, now := newTestBudget(t, DefaultSharedBudgetConfig())
	ctx := context.Background()

	d, err := b.Take(ctx, ClassRead, "peer", 1, 1)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, _ = b.Take(ctx, ClassRead, "peer", 1, 1)
	assert.False(t, d.Allowed)

	*now = now.Add(time.Second)
	d, err = b.Take(ctx, ClassRead, "peer", 1, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "one token refills per second")
}

func TestSharedBudgetKeys(t *testing.T) {
	t.Parallel()

	cfg := DefaultSharedBudgetConfig()
	cfg.KeyPrefix = "test:"
	b, mr, _ := newTestBudget(t, cfg)
	ctx := context.Background()

	_, err := b.Take(ctx, ClassRead, "10.0.0.1", 1, 1)
	require.NoError(t, err)

	d, _ := b.Take(ctx, ClassWrite, "10.0.0.1", 1, 1)
	assert.True(t, d.Allowed, "classes have separate buckets")
	d, _ = b.Take(ctx, ClassRead, "10.0.0.2", 1, 1)
	assert.True(t, d.Allowed, "peers have separate buckets")

	assert.True(t, mr.Exists("test:read:10.0.0.1"))
	assert.Greater(t, mr.TTL("test:read:10.0.0.1"), time.Duration(0), "idle buckets expire")
}

func TestSharedBudgetUnlimited(t *testing.T) {
	t.Parallel()

	b, mr, _ := newTestBudget(t, DefaultSharedBudgetConfig())
	d, err := b.Take(context.Background(), ClassRead, "peer", 0, 0)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, mr.Keys(), "no state is kept without a rate")
}

func TestSharedBudgetRedisDown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		failOpen bool
	}{
		{"fail open", true},
		{"fail closed", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultSharedBudgetConfig()
			cfg.FailOpen = tt.failOpen
			b, mr, _ := newTestBudget(t, cfg)
			mr.Close()

			d, err := b.Take(context.Background(), ClassWrite, "peer", 10, 10)
			assert.Error(t, err)
			assert.Equal(t, tt.failOpen, d.Allowed)
		})
	}
}

func TestNewSharedBudgetUnreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := DefaultSharedBudgetConfig()
	cfg.Addr = addr
	_, err := NewSharedBudget(cfg)
	assert.ErrorContains(t, err, "redis connection failed")
}
