// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// addrClient records which connection a call went through.
type addrClient struct {
	target string
}

func addrFactory(cc grpc.ClientConnInterface) addrClient {
	return addrClient{target: cc.(*grpc.ClientConn).Target()}
}

func newTestCluster(t *testing.T, addrs ...string) *ClusterPool[addrClient] {
	t.Helper()
	opts := DefaultClusterOptions(addrs)
	opts.InitialBackoff = time.Millisecond
	opts.MaxBackoff = 2 * time.Millisecond
	opts.ConnsPerHost = 1
	cp := NewClusterPool(addrFactory, opts)
	t.Cleanup(func() { _ = cp.Close() })
	return cp
}

func TestExecuteOnAnyRetriesAcrossNodes(t *testing.T) {
	t.Parallel()
	cp := newTestCluster(t, "passthrough:///node-a", "passthrough:///node-b")

	var seen []string
	err := cp.ExecuteOnAny(context.Background(), func(c addrClient) error {
		seen = append(seen, c.target)
		if len(seen) < 3 {
			return status.Error(codes.Unavailable, "not the raft leader")
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.NotEqual(t, seen[0], seen[1], "retry moves to the next node")
}

func TestExecuteOnAnyStopsOnPermanentError(t *testing.T) {
	t.Parallel()
	cp := newTestCluster(t, "passthrough:///node-a")

	calls := 0
	err := cp.ExecuteOnAny(context.Background(), func(addrClient) error {
		calls++
		return status.Error(codes.NotFound, "container not found")
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestExecuteOnAnyExhaustsRetries(t *testing.T) {
	t.Parallel()
	cp := newTestCluster(t, "passthrough:///node-a")

	calls := 0
	err := cp.ExecuteOnAny(context.Background(), func(addrClient) error {
		calls++
		return status.Error(codes.Unavailable, "down")
	})
	require.Error(t, err)
	assert.Equal(t, DefaultMaxRetries+1, calls)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "failed after 4 attempts")
}

func TestExecuteOnAnyHonorsCancel(t *testing.T) {
	t.Parallel()
	cp := newTestCluster(t, "passthrough:///node-a")

	ctx, cancel := context.WithCancel(context.Background())
	err := cp.ExecuteOnAny(ctx, func(addrClient) error {
		cancel()
		return status.Error(codes.Unavailable, "down")
	})
	assert.Equal(t, codes.Unavailable, status.Code(err), "canceled callers get the failure without retries")
}

func TestNodes(t *testing.T) {
	t.Parallel()
	cp := newTestCluster(t, "passthrough:///a")

	cp.AddNode("passthrough:///b")
	cp.AddNode("passthrough:///b")
	assert.Equal(t, []string{"passthrough:///a", "passthrough:///b"}, cp.Nodes())

	cp.RemoveNode("passthrough:///a")
	assert.Equal(t, []string{"passthrough:///b"}, cp.Nodes())

	cp.UpdateNodes(nil)
	_, _, err := cp.GetAny(context.Background())
	assert.Error(t, err)

	require.NoError(t, cp.Close())
	_, _, err = cp.GetAny(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrRetriesExhausted))
}

func TestIsRetryableCode(t *testing.T) {
	t.Parallel()
	assert.True(t, IsRetryableCode(codes.Unavailable))
	assert.True(t, IsRetryableCode(codes.DeadlineExceeded))
	assert.False(t, IsRetryableCode(codes.InvalidArgument))
}
