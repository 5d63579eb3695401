// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package dbtest holds the behavioural tests every db.DB backend must pass.
package dbtest

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Factory returns a fresh, migrated backend. The backend is closed by the
// factory's own cleanup.
type Factory func(t *testing.T) db.DB

// Run executes the conformance suite against backends produced by newDB.
func Run(t *testing.T, newDB Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newDB(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newDB(t)) })
	t.Run("CreateInvalid", func(t *testing.T) { testCreateInvalid(t, newDB(t)) })
	t.Run("GetPropertiesOrder", func(t *testing.T) { testGetPropertiesOrder(t, newDB(t)) })
	t.Run("PutProperties", func(t *testing.T) { testPutProperties(t, newDB(t)) })
	t.Run("PutVersionConflict", func(t *testing.T) { testPutVersionConflict(t, newDB(t)) })
	t.Run("PutInvalidLeavesRecord", func(t *testing.T) { testPutInvalidLeavesRecord(t, newDB(t)) })
	t.Run("Destroy", func(t *testing.T) { testDestroy(t, newDB(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newDB(t)) })
	t.Run("Snapshots", func(t *testing.T) { testSnapshots(t, newDB(t)) })
	t.Run("ReturnedCopies", func(t *testing.T) { testReturnedCopies(t, newDB(t)) })
	t.Run("ConcurrentPuts", func(t *testing.T) { testConcurrentPuts(t, newDB(t)) })
	t.Run("SnapshotIsolation", func(t *testing.T) { testSnapshotIsolation(t, newDB(t)) })
}

// NewContainer returns container info and a resolved property set for a
// POSIX container in pool.
func NewContainer(t *testing.T, pool uuid.UUID, opts property.CreateOptions) (*types.ContainerInfo, property.Set) {
	t.Helper()
	if opts.Type == "" {
		opts.Type = "POSIX"
	}
	props, err := property.Resolve(opts)
	require.NoError(t, err)
	return &types.ContainerInfo{
		ID:        uuid.New(),
		PoolID:    pool,
		CreatedAt: time.Now().UnixNano(),
	}, props
}

func create(t *testing.T, store db.DB, opts property.CreateOptions) (*types.ContainerInfo, property.Set) {
	t.Helper()
	info, props := NewContainer(t, uuid.New(), opts)
	require.NoError(t, store.CreateContainer(context.Background(), info, props))
	return info, props
}

func testCreateAndGet(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, props := create(t, store, property.CreateOptions{ChecksumEnabled: true, ServerVerify: true})

	got, err := store.GetContainer(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.ID, got.ID)
	assert.Equal(t, info.PoolID, got.PoolID)
	assert.Equal(t, info.CreatedAt, got.CreatedAt)
	assert.Empty(t, got.Snapshots)

	all, version, err := store.GetProperties(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, db.InitialVersion, version)
	if diff := cmp.Diff(props, all); diff != "" {
		t.Errorf("GetProperties() mismatch (-want +got):\n%s", diff)
	}

	_, err = store.GetContainer(ctx, uuid.New())
	assert.ErrorIs(t, err, db.ErrContainerNotFound)
	_, _, err = store.GetProperties(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, db.ErrContainerNotFound)
}

func testCreateDuplicate(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, props := create(t, store, property.CreateOptions{Label: "first"})

	dup := info.Clone()
	other, err := property.Resolve(property.CreateOptions{Type: "HDF5", Label: "second"})
	require.NoError(t, err)
	require.ErrorIs(t, store.CreateContainer(ctx, dup, other), db.ErrContainerExists)

	// The original record is untouched.
	got, _, err := store.GetProperties(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.True(t, props.Equal(got))
}

func testCreateInvalid(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, _ := NewContainer(t, uuid.New(), property.CreateOptions{})

	bad := property.Set{{ID: property.IDChecksumChunkSize, Value: property.Bool(true)}}
	require.ErrorIs(t, store.CreateContainer(ctx, info, bad), property.ErrInvalidProperty)

	_, err := store.GetContainer(ctx, info.ID)
	assert.ErrorIs(t, err, db.ErrContainerNotFound)
	_, _, err = store.GetProperties(ctx, info.ID, nil)
	assert.ErrorIs(t, err, db.ErrContainerNotFound)
}

func testGetPropertiesOrder(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, _ := create(t, store, property.CreateOptions{ChecksumEnabled: true, ChunkSize: 4096, Label: "ordered"})

	ids := []property.ID{property.IDChecksumChunkSize, property.IDLabel, property.IDLayoutType}
	got, _, err := store.GetProperties(ctx, info.ID, ids)
	require.NoError(t, err)
	want := property.Set{
		{ID: property.IDChecksumChunkSize, Value: property.Uint64(4096)},
		{ID: property.IDLabel, Value: property.String("ordered")},
		{ID: property.IDLayoutType, Value: property.Enum(uint32(property.LayoutPOSIX))},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetProperties() mismatch (-want +got):\n%s", diff)
	}

	_, _, err = store.GetProperties(ctx, info.ID, []property.ID{property.IDLabel, 0x7777})
	assert.ErrorIs(t, err, property.ErrUnknownProperty)
}

func testPutProperties(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, _ := create(t, store, property.CreateOptions{})

	version, err := store.PutProperties(ctx, info.ID, property.Set{
		{ID: property.IDChecksum, Value: property.Enum(uint32(property.ChecksumCRC32))},
		{ID: property.IDLabel, Value: property.String("renamed")},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, db.InitialVersion+1, version)

	got, readVersion, err := store.GetProperties(ctx, info.ID, []property.ID{property.IDLabel, property.IDChecksum})
	require.NoError(t, err)
	assert.Equal(t, version, readVersion)
	assert.Equal(t, "renamed", got[0].Value.Str())
	assert.Equal(t, uint32(property.ChecksumCRC32), got[1].Value.Enum())

	after, err := store.GetContainer(ctx, info.ID)
	require.NoError(t, err)
	assert.NotZero(t, after.ModifiedAt)

	_, err = store.PutProperties(ctx, uuid.New(), got, 0)
	assert.ErrorIs(t, err, db.ErrContainerNotFound)
	_, err = store.PutProperties(ctx, info.ID, nil, 0)
	assert.ErrorIs(t, err, property.ErrInvalidProperty)
}

func testPutVersionConflict(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, _ := create(t, store, property.CreateOptions{})
	update := property.Set{{ID: property.IDSnapshotMax, Value: property.Uint64(3)}}

	version, err := store.PutProperties(ctx, info.ID, update, db.InitialVersion)
	require.NoError(t, err)
	assert.Equal(t, db.InitialVersion+1, version)

	_, err = store.PutProperties(ctx, info.ID, update, db.InitialVersion)
	require.ErrorIs(t, err, db.ErrVersionConflict)

	_, current, err := store.GetProperties(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, version, current)
}

func testPutInvalidLeavesRecord(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, props := create(t, store, property.CreateOptions{})

	_, err := store.PutProperties(ctx, info.ID, property.Set{
		{ID: property.IDLabel, Value: property.String("ok")},
		{ID: property.IDChecksumServerVerify, Value: property.Uint32(1)},
	}, 0)
	require.ErrorIs(t, err, property.ErrInvalidProperty)

	got, version, err := store.GetProperties(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, db.InitialVersion, version)
	assert.True(t, props.Equal(got))
}

func testDestroy(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, _ := create(t, store, property.CreateOptions{})
	require.NoError(t, store.AddSnapshot(ctx, info.ID, 10, 0))

	require.NoError(t, store.DestroyContainer(ctx, info.ID))

	_, err := store.GetContainer(ctx, info.ID)
	assert.ErrorIs(t, err, db.ErrContainerNotFound)
	_, _, err = store.GetProperties(ctx, info.ID, nil)
	assert.ErrorIs(t, err, db.ErrContainerNotFound)
	_, err = store.PutProperties(ctx, info.ID, property.Set{{ID: property.IDSnapshotMax, Value: property.Uint64(1)}}, 0)
	assert.ErrorIs(t, err, db.ErrContainerNotFound)
	assert.ErrorIs(t, store.AddSnapshot(ctx, info.ID, 11, 0), db.ErrContainerNotFound)
	assert.ErrorIs(t, store.DestroyContainer(ctx, info.ID), db.ErrContainerNotFound)

	// The id can be reused after destroy and starts over at the initial
	// version with no snapshots.
	_, props := NewContainer(t, info.PoolID, property.CreateOptions{})
	require.NoError(t, store.CreateContainer(ctx, info, props))
	_, version, err := store.GetProperties(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, db.InitialVersion, version)
	got, err := store.GetContainer(ctx, info.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Snapshots)
}

func testList(t *testing.T, store db.DB) {
	ctx := context.Background()
	poolA, poolB := uuid.New(), uuid.New()

	var inA []uuid.UUID
	for i := 0; i < 5; i++ {
		info, props := NewContainer(t, poolA, property.CreateOptions{})
		require.NoError(t, store.CreateContainer(ctx, info, props))
		inA = append(inA, info.ID)
	}
	for i := 0; i < 3; i++ {
		info, props := NewContainer(t, poolB, property.CreateOptions{})
		require.NoError(t, store.CreateContainer(ctx, info, props))
	}

	var listed []uuid.UUID
	params := &db.ListContainersParams{PoolID: poolA, MaxContainers: 2}
	for pages := 0; ; pages++ {
		require.Less(t, pages, 10, "listing did not terminate")
		res, err := store.ListContainers(ctx, params)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.Containers), 2)
		for _, c := range res.Containers {
			assert.Equal(t, poolA, c.PoolID)
			listed = append(listed, c.ID)
		}
		if !res.IsTruncated {
			assert.Empty(t, res.NextContinuationToken)
			break
		}
		params.ContinuationToken = res.NextContinuationToken
	}

	assert.ElementsMatch(t, inA, listed)
	for i := 1; i < len(listed); i++ {
		assert.Negative(t, bytes.Compare(listed[i-1][:], listed[i][:]), "listing must be ordered by id")
	}

	all, err := store.ListContainers(ctx, &db.ListContainersParams{})
	require.NoError(t, err)
	assert.Len(t, all.Containers, 8)
	assert.False(t, all.IsTruncated)

	_, err = store.ListContainers(ctx, &db.ListContainersParams{ContinuationToken: "not-a-uuid"})
	assert.Error(t, err)
}

func testSnapshots(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, _ := create(t, store, property.CreateOptions{})

	require.NoError(t, store.AddSnapshot(ctx, info.ID, 30, 2))
	require.NoError(t, store.AddSnapshot(ctx, info.ID, 10, 2))
	assert.ErrorIs(t, store.AddSnapshot(ctx, info.ID, 10, 0), db.ErrSnapshotExists)
	assert.ErrorIs(t, store.AddSnapshot(ctx, info.ID, 20, 2), db.ErrSnapshotLimit)

	got, err := store.GetContainer(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 30}, got.Snapshots)
	assert.Equal(t, uint64(30), got.LatestSnapshot())

	require.NoError(t, store.DeleteSnapshot(ctx, info.ID, 10))
	assert.ErrorIs(t, store.DeleteSnapshot(ctx, info.ID, 10), db.ErrSnapshotNotFound)
	require.NoError(t, store.AddSnapshot(ctx, info.ID, 20, 2))

	got, err = store.GetContainer(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{20, 30}, got.Snapshots)

	// Snapshots do not bump the property version.
	_, version, err := store.GetProperties(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, db.InitialVersion, version)

	assert.ErrorIs(t, store.DeleteSnapshot(ctx, uuid.New(), 1), db.ErrContainerNotFound)
}

func testReturnedCopies(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, props := create(t, store, property.CreateOptions{})

	got, _, err := store.GetProperties(ctx, info.ID, nil)
	require.NoError(t, err)
	got[0].Value = property.String("mutated")

	c, err := store.GetContainer(ctx, info.ID)
	require.NoError(t, err)
	c.Snapshots = append(c.Snapshots, 99)

	again, _, err := store.GetProperties(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.True(t, props.Equal(again))
	c2, err := store.GetContainer(ctx, info.ID)
	require.NoError(t, err)
	assert.Empty(t, c2.Snapshots)
}

func testConcurrentPuts(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, _ := create(t, store, property.CreateOptions{})

	const writers = 8
	var (
		mu       sync.Mutex
		versions = make(map[uint64]bool)
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < writers; i++ {
		label := fmt.Sprintf("writer-%d", i)
		g.Go(func() error {
			v, err := store.PutProperties(gctx, info.ID, property.Set{{ID: property.IDLabel, Value: property.String(label)}}, 0)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if versions[v] {
				return fmt.Errorf("version %d returned twice", v)
			}
			versions[v] = true
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for v := db.InitialVersion + 1; v <= db.InitialVersion+writers; v++ {
		assert.True(t, versions[v], "missing version %d", v)
	}
	_, version, err := store.GetProperties(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, db.InitialVersion+writers, version)
}

func testSnapshotIsolation(t *testing.T, store db.DB) {
	ctx := context.Background()
	info, _ := create(t, store, property.CreateOptions{ChecksumEnabled: true, ChecksumType: property.ChecksumCRC32, ChunkSize: 4096})

	// Writers alternate between two consistent pairs; a reader must never
	// see a checksum from one pair with the chunk size of the other.
	pairs := map[uint32]uint64{
		uint32(property.ChecksumCRC32): 4096,
		uint32(property.ChecksumSHA1):  8192,
	}
	sets := []property.Set{
		{{ID: property.IDChecksum, Value: property.Enum(uint32(property.ChecksumSHA1))}, {ID: property.IDChecksumChunkSize, Value: property.Uint64(8192)}},
		{{ID: property.IDChecksum, Value: property.Enum(uint32(property.ChecksumCRC32))}, {ID: property.IDChecksumChunkSize, Value: property.Uint64(4096)}},
	}

	ids := []property.ID{property.IDChecksum, property.IDChecksumChunkSize}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 0; i < 20; i++ {
			if _, err := store.PutProperties(gctx, info.ID, sets[i%2], 0); err != nil {
				return err
			}
		}
		return nil
	})
	for r := 0; r < 4; r++ {
		g.Go(func() error {
			for i := 0; i < 20; i++ {
				got, _, err := store.GetProperties(gctx, info.ID, ids)
				if err != nil {
					return err
				}
				if want := pairs[got[0].Value.Enum()]; want != got[1].Value.Uint64() {
					return fmt.Errorf("torn read: checksum %d with chunk size %d", got[0].Value.Enum(), got[1].Value.Uint64())
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
