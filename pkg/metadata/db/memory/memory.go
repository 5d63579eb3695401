// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory provides an in-memory implementation of db.DB.
// It backs unit tests and is the state machine replicated by the raft
// backend.
package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/btree"
	"github.com/google/uuid"
)

// Option configures a DB.
type Option func(*DB)

// WithClock replaces the clock used for modification timestamps.
func WithClock(now func() int64) Option {
	return func(d *DB) { d.now = now }
}

// DB is an in-memory container store.
type DB struct {
	mu sync.RWMutex

	// Published records are never modified; writers build a new record
	// and swap the pointer.
	records map[uuid.UUID]*db.Record
	// index orders container ids for listing.
	index *btree.BTreeG[uuid.UUID]

	now func() int64
}

func lessUUID(a, b uuid.UUID) bool { return bytes.Compare(a[:], b[:]) < 0 }

// New creates a new in-memory database.
func New(opts ...Option) *DB {
	d := &DB{
		records: make(map[uuid.UUID]*db.Record),
		index:   btree.NewG[uuid.UUID](32, lessUUID),
		now:     func() int64 { return time.Now().UnixNano() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DB) Migrate(ctx context.Context) error { return nil }

func (d *DB) Close() error { return nil }

// ============================================================================
// Container Operations
// ============================================================================

func (d *DB) CreateContainer(ctx context.Context, info *types.ContainerInfo, props property.Set) error {
	if err := db.CheckCreate(info, props); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[info.ID]; ok {
		return db.ErrContainerExists
	}
	d.records[info.ID] = db.NewRecord(info, props)
	d.index.ReplaceOrInsert(info.ID)
	return nil
}

func (d *DB) GetContainer(ctx context.Context, id uuid.UUID) (*types.ContainerInfo, error) {
	d.mu.RLock()
	rec, ok := d.records[id]
	d.mu.RUnlock()
	if !ok {
		return nil, db.ErrContainerNotFound
	}
	return rec.Info.Clone(), nil
}

func (d *DB) GetProperties(ctx context.Context, id uuid.UUID, ids []property.ID) (property.Set, uint64, error) {
	ids, err := db.RequestedIDs(ids)
	if err != nil {
		return nil, 0, err
	}

	d.mu.RLock()
	rec, ok := d.records[id]
	d.mu.RUnlock()
	if !ok {
		return nil, 0, db.ErrContainerNotFound
	}

	// rec is immutable, so the selection is consistent without the lock.
	props, err := rec.Props.Select(ids)
	if err != nil {
		return nil, 0, err
	}
	return props, rec.Version, nil
}

func (d *DB) PutProperties(ctx context.Context, id uuid.UUID, props property.Set, expectedVersion uint64) (uint64, error) {
	if err := db.CheckPut(props); err != nil {
		return 0, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[id]
	if !ok {
		return 0, db.ErrContainerNotFound
	}
	next, err := rec.Put(props, expectedVersion, d.now())
	if err != nil {
		return 0, err
	}
	d.records[id] = next
	return next.Version, nil
}

func (d *DB) DestroyContainer(ctx context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[id]; !ok {
		return db.ErrContainerNotFound
	}
	delete(d.records, id)
	d.index.Delete(id)
	return nil
}

func (d *DB) ListContainers(ctx context.Context, params *db.ListContainersParams) (*db.ListContainersResult, error) {
	if params == nil {
		params = &db.ListContainersParams{}
	}
	after, err := db.ParseContinuationToken(params.ContinuationToken)
	if err != nil {
		return nil, err
	}
	limit := params.PageSize()

	d.mu.RLock()
	defer d.mu.RUnlock()

	result := &db.ListContainersResult{}
	d.index.AscendGreaterOrEqual(after, func(id uuid.UUID) bool {
		if after != uuid.Nil && id == after {
			return true
		}
		rec := d.records[id]
		if params.PoolID != uuid.Nil && rec.Info.PoolID != params.PoolID {
			return true
		}
		if len(result.Containers) == limit {
			result.IsTruncated = true
			return false
		}
		result.Containers = append(result.Containers, rec.Info.Clone())
		return true
	})
	if result.IsTruncated {
		result.NextContinuationToken = result.Containers[len(result.Containers)-1].ID.String()
	}
	return result, nil
}

// ============================================================================
// Snapshot Operations
// ============================================================================

func (d *DB) AddSnapshot(ctx context.Context, id uuid.UUID, epoch uint64, limit uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[id]
	if !ok {
		return db.ErrContainerNotFound
	}
	next, err := rec.AddSnapshot(epoch, limit, d.now())
	if err != nil {
		return err
	}
	d.records[id] = next
	return nil
}

func (d *DB) DeleteSnapshot(ctx context.Context, id uuid.UUID, epoch uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[id]
	if !ok {
		return db.ErrContainerNotFound
	}
	next, err := rec.DeleteSnapshot(epoch, d.now())
	if err != nil {
		return err
	}
	d.records[id] = next
	return nil
}

// ============================================================================
// Export / Import
// ============================================================================

// Export returns a deep copy of every record ordered by container id.
func (d *DB) Export() []*db.Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*db.Record, 0, len(d.records))
	d.index.Ascend(func(id uuid.UUID) bool {
		out = append(out, d.records[id].Clone())
		return true
	})
	return out
}

// Import replaces the whole contents of the store with records.
func (d *DB) Import(records []*db.Record) {
	fresh := make(map[uuid.UUID]*db.Record, len(records))
	index := btree.NewG[uuid.UUID](32, lessUUID)
	for _, r := range records {
		fresh[r.Info.ID] = r.Clone()
		index.ReplaceOrInsert(r.Info.ID)
	}

	d.mu.Lock()
	d.records = fresh
	d.index = index
	d.mu.Unlock()
}

// Len returns the number of stored containers.
func (d *DB) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

var _ db.DB = (*DB)(nil)
