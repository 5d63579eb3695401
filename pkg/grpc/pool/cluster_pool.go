// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package pool

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/utils"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ClusterPool spreads calls over the servers of one cluster. A call that
// fails with a retryable code is retried on the next server after a
// jittered exponential backoff. Followers of a raft backend answer writes
// with Unavailable, so retries walk the list until they reach the leader.
type ClusterPool[T any] struct {
	pool *Pool[T]
	opts ClusterOptions

	mu        sync.RWMutex
	nodeAddrs []string
	// next rotates the starting node between calls.
	next atomic.Uint64

	closed atomic.Bool
}

// NewClusterPool creates a new cluster-aware connection pool.
func NewClusterPool[T any](factory ClientFactory[T], opts ClusterOptions) *ClusterPool[T] {
	return &ClusterPool[T]{
		pool:      NewPool(factory, opts.Options),
		opts:      opts,
		nodeAddrs: slices.Clone(opts.SeedAddrs),
	}
}

// GetAny returns a client for some node, starting from the one after the
// node used last.
func (cp *ClusterPool[T]) GetAny(ctx context.Context) (T, string, error) {
	var zero T
	if cp.closed.Load() {
		return zero, "", fmt.Errorf("cluster pool is closed")
	}

	cp.mu.RLock()
	addrs := cp.nodeAddrs
	cp.mu.RUnlock()
	if len(addrs) == 0 {
		return zero, "", fmt.Errorf("no nodes available")
	}

	start := int(cp.next.Add(1)-1) % len(addrs)
	var lastErr error
	for i := range addrs {
		addr := addrs[(start+i)%len(addrs)]
		client, err := cp.pool.Get(ctx, addr)
		if err != nil {
			logger.Debug().Str("addr", addr).Err(err).Msg("failed to connect to node")
			lastErr = err
			continue
		}
		return client, addr, nil
	}
	return zero, "", fmt.Errorf("failed to connect to any node: %w", lastErr)
}

// ExecuteOnAny runs op against cluster nodes until it succeeds, fails with
// a non-retryable error, or MaxRetries+1 attempts have failed. The last
// case returns an error wrapping ErrRetriesExhausted and the last failure.
func (cp *ClusterPool[T]) ExecuteOnAny(ctx context.Context, op func(client T) error) error {
	var lastErr error
	backoff := cp.opts.InitialBackoff

	for attempt := 0; attempt <= cp.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(utils.Jitter(backoff, cp.opts.BackoffJitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = min(backoff*2, cp.opts.MaxBackoff)
		}

		client, addr, err := cp.GetAny(ctx)
		if err != nil {
			lastErr = err
			logger.Debug().
				Int("attempt", attempt+1).
				Err(err).
				Msg("failed to get client, retrying")
			continue
		}

		err = op(client)
		if err == nil {
			return nil
		}
		if !cp.isRetryableError(ctx, err) {
			return err
		}

		lastErr = err
		logger.Debug().
			Int("attempt", attempt+1).
			Str("addr", addr).
			Err(err).
			Msg("operation failed with retryable error, trying next node")
	}

	return fmt.Errorf("failed after %d attempts: %w", cp.opts.MaxRetries+1, errors.Join(ErrRetriesExhausted, lastErr))
}

func (cp *ClusterPool[T]) isRetryableError(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		// Not a gRPC error: a dial or pool failure.
		return true
	}
	return slices.Contains(cp.opts.RetryableCodes, s.Code())
}

// UpdateNodes replaces the list of known cluster nodes.
func (cp *ClusterPool[T]) UpdateNodes(addrs []string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.nodeAddrs = slices.Clone(addrs)
	logger.Debug().Strs("nodes", addrs).Msg("cluster nodes updated")
}

// AddNode adds a node to the known cluster nodes if not already present.
func (cp *ClusterPool[T]) AddNode(addr string) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if slices.Contains(cp.nodeAddrs, addr) {
		return
	}
	cp.nodeAddrs = append(slices.Clone(cp.nodeAddrs), addr)
}

// RemoveNode removes a node from the known cluster nodes and drops its
// connections.
func (cp *ClusterPool[T]) RemoveNode(addr string) {
	cp.mu.Lock()
	cp.nodeAddrs = slices.DeleteFunc(slices.Clone(cp.nodeAddrs), func(s string) bool {
		return s == addr
	})
	cp.mu.Unlock()
	cp.pool.Remove(addr)
}

// Nodes returns the known cluster nodes.
func (cp *ClusterPool[T]) Nodes() []string {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return slices.Clone(cp.nodeAddrs)
}

// Close closes all connections in the pool
func (cp *ClusterPool[T]) Close() error {
	if !cp.closed.CompareAndSwap(false, true) {
		return nil
	}
	return cp.pool.Close()
}

// IsRetryableCode returns true if the given gRPC code is retryable
func IsRetryableCode(code codes.Code) bool {
	return slices.Contains(DefaultRetryableCodes, code)
}
