// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/LeeDigitalWorks/zapprops/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// ClientFactory creates a gRPC client from a connection
type ClientFactory[T any] func(cc grpc.ClientConnInterface) T

// Pool keeps up to ConnsPerHost lazily created connections per server
// address and hands out clients round-robin.
type Pool[T any] struct {
	opts    Options
	factory ClientFactory[T]

	mu     sync.Mutex
	hosts  map[string]*host[T]
	closed atomic.Bool
}

type host[T any] struct {
	mu    sync.Mutex
	addr  string
	slots []slot[T]
	next  int
}

type slot[T any] struct {
	conn   *grpc.ClientConn
	client T
}

// NewPool creates an empty pool. ConnsPerHost below one is treated as one.
func NewPool[T any](factory ClientFactory[T], opts Options) *Pool[T] {
	if opts.ConnsPerHost <= 0 {
		opts.ConnsPerHost = 1
	}
	return &Pool[T]{
		opts:    opts,
		factory: factory,
		hosts:   make(map[string]*host[T]),
	}
}

// Get returns a client for addr, connecting on first use.
func (p *Pool[T]) Get(ctx context.Context, addr string) (T, error) {
	var zero T
	if p.closed.Load() {
		return zero, errors.New("pool is closed")
	}

	p.mu.Lock()
	h, ok := p.hosts[addr]
	if !ok {
		h = &host[T]{addr: addr}
		p.hosts[addr] = h
	}
	p.mu.Unlock()

	return h.get(p)
}

// Remove drops and closes every connection to addr.
func (p *Pool[T]) Remove(addr string) {
	p.mu.Lock()
	h, ok := p.hosts[addr]
	delete(p.hosts, addr)
	p.mu.Unlock()

	if ok {
		h.close()
		logger.Debug().Str("address", addr).Msg("removed host from pool")
	}
}

// Close closes all connections. Later calls to Get fail.
func (p *Pool[T]) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.mu.Lock()
	hosts := p.hosts
	p.hosts = make(map[string]*host[T])
	p.mu.Unlock()

	var errs []error
	for _, h := range hosts {
		errs = append(errs, h.close())
	}
	return errors.Join(errs...)
}

func (h *host[T]) get(p *Pool[T]) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.slots) < p.opts.ConnsPerHost {
		return h.dial(p)
	}

	for range len(h.slots) {
		s := h.slots[h.next%len(h.slots)]
		h.next++
		switch s.conn.GetState() {
		case connectivity.Ready, connectivity.Idle:
			return s.client, nil
		}
	}

	// No usable connection; replace the oldest one.
	stale := h.slots[0]
	h.slots = h.slots[1:]
	_ = stale.conn.Close()
	return h.dial(p)
}

// dial creates a lazily connecting client. The caller holds h.mu.
func (h *host[T]) dial(p *Pool[T]) (T, error) {
	var zero T
	conn, err := grpc.NewClient(h.addr, p.opts.DialOpts...)
	if err != nil {
		return zero, fmt.Errorf("failed to create client for %s: %w", h.addr, err)
	}
	s := slot[T]{conn: conn, client: p.factory(conn)}
	h.slots = append(h.slots, s)

	logger.Debug().Str("address", h.addr).Int("conns", len(h.slots)).Msg("created new connection")
	return s.client, nil
}

func (h *host[T]) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var errs []error
	for _, s := range h.slots {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.slots = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close connections to %s: %w", h.addr, err)
	}
	return nil
}
