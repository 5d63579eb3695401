// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package bolt provides an embedded bbolt implementation of the db.DB
// interface. Each container is one JSON record keyed by its 16-byte id, so
// bbolt's byte ordering is the listing order.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var containersBucket = []byte("containers")

// Config holds bbolt configuration
type Config struct {
	// Path is the database file. It is created with 0600 rights if missing.
	Path string
	// LockTimeout bounds how long Open waits for the file lock.
	LockTimeout time.Duration
	// NoSync skips fsync after each commit. Only for tests.
	NoSync bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig(path string) Config {
	return Config{Path: path, LockTimeout: time.Second}
}

// Bolt implements db.DB on a bbolt file.
type Bolt struct {
	db *bbolt.DB
}

// NewBolt opens the database at cfg.Path.
func NewBolt(cfg Config) (*Bolt, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	bdb, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{
		Timeout:      cfg.LockTimeout,
		NoSync:       cfg.NoSync,
		NoStatistics: true,
	})
	if err != nil {
		return nil, fmt.Errorf("can't open bbolt at %s: %w", cfg.Path, err)
	}
	return &Bolt{db: bdb}, nil
}

// Migrate creates the buckets.
func (b *Bolt) Migrate(ctx context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(containersBucket); err != nil {
			return fmt.Errorf("can't create containers bucket: %w", err)
		}
		return nil
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

// Ping verifies the database file is open.
func (b *Bolt) Ping(ctx context.Context) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(containersBucket) == nil {
			return fmt.Errorf("containers bucket missing")
		}
		return nil
	})
}

// ============================================================================
// Container Operations
// ============================================================================

func (b *Bolt) CreateContainer(ctx context.Context, info *types.ContainerInfo, props property.Set) error {
	if err := db.CheckCreate(info, props); err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt, err := bucket(tx)
		if err != nil {
			return err
		}
		if bkt.Get(info.ID[:]) != nil {
			return db.ErrContainerExists
		}
		return putRecord(bkt, db.NewRecord(info, props))
	})
}

func (b *Bolt) GetContainer(ctx context.Context, id uuid.UUID) (*types.ContainerInfo, error) {
	var info *types.ContainerInfo
	err := b.db.View(func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		info = rec.Info
		return nil
	})
	return info, err
}

func (b *Bolt) GetProperties(ctx context.Context, id uuid.UUID, ids []property.ID) (property.Set, uint64, error) {
	ids, err := db.RequestedIDs(ids)
	if err != nil {
		return nil, 0, err
	}

	var rec *db.Record
	err = b.db.View(func(tx *bbolt.Tx) error {
		rec, err = getRecord(tx, id)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	props, err := rec.Props.Select(ids)
	if err != nil {
		return nil, 0, err
	}
	return props, rec.Version, nil
}

func (b *Bolt) PutProperties(ctx context.Context, id uuid.UUID, props property.Set, expectedVersion uint64) (uint64, error) {
	if err := db.CheckPut(props); err != nil {
		return 0, err
	}

	var version uint64
	err := b.update(id, func(rec *db.Record) (*db.Record, error) {
		next, err := rec.Put(props, expectedVersion, time.Now().UnixNano())
		if err != nil {
			return nil, err
		}
		version = next.Version
		return next, nil
	})
	return version, err
}

func (b *Bolt) DestroyContainer(ctx context.Context, id uuid.UUID) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt, err := bucket(tx)
		if err != nil {
			return err
		}
		if bkt.Get(id[:]) == nil {
			return db.ErrContainerNotFound
		}
		return bkt.Delete(id[:])
	})
}

func (b *Bolt) ListContainers(ctx context.Context, params *db.ListContainersParams) (*db.ListContainersResult, error) {
	if params == nil {
		params = &db.ListContainersParams{}
	}
	after, err := db.ParseContinuationToken(params.ContinuationToken)
	if err != nil {
		return nil, err
	}
	limit := params.PageSize()

	result := &db.ListContainersResult{}
	err = b.db.View(func(tx *bbolt.Tx) error {
		bkt, err := bucket(tx)
		if err != nil {
			return err
		}
		c := bkt.Cursor()
		for k, v := c.Seek(after[:]); k != nil; k, v = c.Next() {
			if after != uuid.Nil && bytes.Equal(k, after[:]) {
				continue
			}
			rec, err := decodeRecord(v)
			if err != nil {
				return err
			}
			if params.PoolID != uuid.Nil && rec.Info.PoolID != params.PoolID {
				continue
			}
			if len(result.Containers) == limit {
				result.IsTruncated = true
				result.NextContinuationToken = result.Containers[limit-1].ID.String()
				break
			}
			result.Containers = append(result.Containers, rec.Info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ============================================================================
// Snapshot Operations
// ============================================================================

func (b *Bolt) AddSnapshot(ctx context.Context, id uuid.UUID, epoch uint64, limit uint64) error {
	return b.update(id, func(rec *db.Record) (*db.Record, error) {
		return rec.AddSnapshot(epoch, limit, time.Now().UnixNano())
	})
}

func (b *Bolt) DeleteSnapshot(ctx context.Context, id uuid.UUID, epoch uint64) error {
	return b.update(id, func(rec *db.Record) (*db.Record, error) {
		return rec.DeleteSnapshot(epoch, time.Now().UnixNano())
	})
}

// ============================================================================
// Helpers
// ============================================================================

// update runs fn on the record of id inside a write transaction and stores
// the record it returns.
func (b *Bolt) update(id uuid.UUID, fn func(*db.Record) (*db.Record, error)) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		rec, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		next, err := fn(rec)
		if err != nil {
			return err
		}
		bkt, err := bucket(tx)
		if err != nil {
			return err
		}
		return putRecord(bkt, next)
	})
}

func bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	bkt := tx.Bucket(containersBucket)
	if bkt == nil {
		return nil, fmt.Errorf("containers bucket missing; run Migrate")
	}
	return bkt, nil
}

// getRecord decodes the record of id. The returned record does not alias
// bbolt memory and stays valid after the transaction ends.
func getRecord(tx *bbolt.Tx, id uuid.UUID) (*db.Record, error) {
	bkt, err := bucket(tx)
	if err != nil {
		return nil, err
	}
	v := bkt.Get(id[:])
	if v == nil {
		return nil, db.ErrContainerNotFound
	}
	return decodeRecord(v)
}

func decodeRecord(v []byte) (*db.Record, error) {
	var rec db.Record
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("decode container record: %w", err)
	}
	return &rec, nil
}

func putRecord(bkt *bbolt.Bucket, rec *db.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode container record: %w", err)
	}
	return bkt.Put(rec.Info.ID[:], data)
}

// Ensure Bolt implements db.DB
var _ db.DB = (*Bolt)(nil)
