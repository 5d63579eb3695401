// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"
	"github.com/LeeDigitalWorks/zapprops/pkg/utils"

	"github.com/google/uuid"
)

// ErrTooManyHandles is returned by Open when the table is full.
var ErrTooManyHandles = errors.New("too many open handles")

// DefaultHandleTTL is the idle time after which an unused handle expires.
const DefaultHandleTTL = 30 * time.Minute

// HandleTableConfig configures a HandleTable.
type HandleTableConfig struct {
	// IdleTTL expires handles not used for this long. Zero uses
	// DefaultHandleTTL; a negative value disables expiry.
	IdleTTL time.Duration
	// MaxHandles caps open handles across all containers (0 = unlimited).
	MaxHandles int
}

// Activity holds the most recent open and close times of a container, in
// Unix nanoseconds.
type Activity struct {
	OpenedAt int64
	ClosedAt int64
}

// HandleTable tracks open container handles. Handles live only in memory;
// a restarted server starts with none.
type HandleTable struct {
	// openMu makes the capacity check and insert in Open atomic. Removal
	// only shrinks the table, so it does not take the lock.
	openMu     sync.Mutex
	handles    *Cache[uuid.UUID, types.Handle]
	activity   *utils.ShardedMap[uuid.UUID, Activity]
	maxHandles int
}

// NewHandleTable creates a handle table. Call Stop to release its sweeper.
func NewHandleTable(cfg HandleTableConfig) *HandleTable {
	ttl := cfg.IdleTTL
	if ttl == 0 {
		ttl = DefaultHandleTTL
	}
	if ttl < 0 {
		ttl = 0
	}

	t := &HandleTable{
		activity:   utils.NewShardedMap[uuid.UUID, Activity](),
		maxHandles: cfg.MaxHandles,
	}
	t.handles = New(
		WithExpiry[uuid.UUID, types.Handle](ttl),
		WithOnEvict(func(id uuid.UUID, h types.Handle) {
			logger.Debug().
				Str("handle", id.String()).
				Str("container_id", h.ContainerID.String()).
				Msg("handle expired")
			t.touch(h.ContainerID, false)
		}),
	)
	return t
}

// Stop stops the expiry sweeper.
func (t *HandleTable) Stop() {
	t.handles.Stop()
}

// Open registers a new handle on containerID.
func (t *HandleTable) Open(containerID uuid.UUID, flags types.OpenFlag) (types.Handle, error) {
	h := types.Handle{
		ID:          uuid.New(),
		ContainerID: containerID,
		Flags:       flags,
		OpenedAt:    time.Now().UnixNano(),
	}

	t.openMu.Lock()
	if t.maxHandles > 0 && t.handles.Size() >= t.maxHandles {
		t.openMu.Unlock()
		return types.Handle{}, ErrTooManyHandles
	}
	t.handles.Set(h.ID, h)
	t.openMu.Unlock()

	t.touch(containerID, true)
	return h, nil
}

// Get returns a live handle and refreshes its idle timer.
func (t *HandleTable) Get(id uuid.UUID) (types.Handle, bool) {
	return t.handles.Get(id)
}

// Close removes a handle. It reports false for an unknown or expired
// handle.
func (t *HandleTable) Close(id uuid.UUID) (types.Handle, bool) {
	h, ok := t.handles.Peek(id)
	if !ok || !t.handles.Delete(id) {
		return types.Handle{}, false
	}
	t.touch(h.ContainerID, false)
	return h, true
}

// Count returns the number of live handles on containerID.
func (t *HandleTable) Count(containerID uuid.UUID) int {
	n := 0
	for _, h := range t.handles.Iter() {
		if h.ContainerID == containerID {
			n++
		}
	}
	return n
}

// Evict closes every handle on containerID and returns how many it closed.
func (t *HandleTable) Evict(containerID uuid.UUID) int {
	n := t.handles.DeleteIf(func(_ uuid.UUID, h types.Handle) bool {
		return h.ContainerID == containerID
	})
	if n > 0 {
		t.touch(containerID, false)
	}
	return n
}

// Forget drops the activity record of a destroyed container.
func (t *HandleTable) Forget(containerID uuid.UUID) {
	t.activity.Delete(containerID)
}

// Activity returns the last open and close times of containerID.
func (t *HandleTable) Activity(containerID uuid.UUID) Activity {
	a, _ := t.activity.Load(containerID)
	return a
}

// Len returns the number of live handles.
func (t *HandleTable) Len() int {
	n := 0
	for range t.handles.Iter() {
		n++
	}
	return n
}

func (t *HandleTable) touch(containerID uuid.UUID, open bool) {
	now := time.Now().UnixNano()
	t.activity.Update(containerID, func(a Activity, _ bool) Activity {
		if open {
			a.OpenedAt = now
		} else {
			a.ClosedAt = now
		}
		return a
	})
}
