// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package raftdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/compression"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/dbtest"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"

	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(nodeID string) Config {
	return Config{
		NodeID:             nodeID,
		HeartbeatTimeout:   50 * time.Millisecond,
		ElectionTimeout:    50 * time.Millisecond,
		LeaderLeaseTimeout: 50 * time.Millisecond,
		CommitTimeout:      5 * time.Millisecond,
		ApplyTimeout:       5 * time.Second,

		SnapshotCompression: compression.ZSTD,
	}
}

type testCluster struct {
	db    *DB
	snaps *raft.InmemSnapshotStore
}

// newTestDB starts a bootstrapped single-node cluster on in-memory stores.
func newTestDB(t *testing.T, cfg Config) *testCluster {
	t.Helper()
	store := raft.NewInmemStore()
	snaps := raft.NewInmemSnapshotStore()
	_, transport := raft.NewInmemTransport("")

	fsm := NewFSM(cfg.SnapshotCompression)
	node, err := newNode(fsm, cfg, store, store, snaps, transport, true)
	require.NoError(t, err)
	require.NoError(t, node.WaitForLeader(5*time.Second))
	require.Eventually(t, node.IsLeader, 5*time.Second, 10*time.Millisecond)

	d := newDB(node, fsm, cfg)
	t.Cleanup(func() { _ = d.Close() })
	return &testCluster{db: d, snaps: snaps}
}

func TestConformance(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) db.DB { return newTestDB(t, testConfig("node1")).db })
}

func TestConsistentReadsConformance(t *testing.T) {
	cfg := testConfig("node1")
	cfg.ConsistentReads = true
	dbtest.Run(t, func(t *testing.T) db.DB { return newTestDB(t, cfg).db })
}

func TestPing(t *testing.T) {
	c := newTestDB(t, testConfig("node1"))
	assert.NoError(t, c.db.Ping(context.Background()))
}

func TestWritesAfterShutdownReturnNotLeader(t *testing.T) {
	c := newTestDB(t, testConfig("node1"))
	ctx := context.Background()

	info, props := dbtest.NewContainer(t, uuid.New(), property.CreateOptions{})
	require.NoError(t, c.db.CreateContainer(ctx, info, props))
	require.NoError(t, c.db.node.raft.Shutdown().Error())

	_, err := c.db.PutProperties(ctx, info.ID, property.Set{{ID: property.IDLabel, Value: property.String("x")}}, 0)
	assert.ErrorIs(t, err, db.ErrNotLeader)
	assert.ErrorIs(t, c.db.DestroyContainer(ctx, info.ID), db.ErrNotLeader)

	// The local replica still serves reads.
	_, err = c.db.GetContainer(ctx, info.ID)
	assert.NoError(t, err)
}

func TestTimestampsComeFromTheLog(t *testing.T) {
	fsm := NewFSM(compression.None)
	info, props := dbtest.NewContainer(t, uuid.New(), property.CreateOptions{})

	apply := func(index uint64, cmd Command) applyResult {
		data, err := json.Marshal(cmd)
		require.NoError(t, err)
		return fsm.Apply(&raft.Log{Index: index, Data: data}).(applyResult)
	}

	require.NoError(t, apply(1, Command{Type: CommandCreateContainer, Timestamp: 10, ID: info.ID, Info: info, Props: props}).Err)
	res := apply(2, Command{Type: CommandAddSnapshot, Timestamp: 77, ID: info.ID, Epoch: 5})
	require.NoError(t, res.Err)

	got, err := fsm.Store().GetContainer(context.Background(), info.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(77), got.ModifiedAt)
	assert.Equal(t, []uint64{5}, got.Snapshots)

	res = apply(3, Command{Type: "bogus"})
	assert.ErrorContains(t, res.Err, "unknown command type")

	res = fsm.Apply(&raft.Log{Index: 4, Data: []byte("{")}).(applyResult)
	assert.ErrorContains(t, res.Err, "decode raft command")
}

func TestSnapshotRestore(t *testing.T) {
	c := newTestDB(t, testConfig("node1"))
	ctx := context.Background()
	pool := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		info, props := dbtest.NewContainer(t, pool, property.CreateOptions{Label: fmt.Sprintf("c%d", i)})
		require.NoError(t, c.db.CreateContainer(ctx, info, props))
		ids = append(ids, info.ID)
	}
	_, err := c.db.PutProperties(ctx, ids[0], property.Set{{ID: property.IDLabel, Value: property.String("renamed")}}, db.InitialVersion)
	require.NoError(t, err)

	require.NoError(t, c.db.node.raft.Snapshot().Error())

	metas, err := c.snaps.List()
	require.NoError(t, err)
	require.NotEmpty(t, metas)
	_, rc, err := c.snaps.Open(metas[0].ID)
	require.NoError(t, err)

	restored := NewFSM(compression.None)
	require.NoError(t, restored.Restore(rc))
	assert.Equal(t, 5, restored.Store().Len())

	props, version, err := restored.Store().GetProperties(ctx, ids[0], []property.ID{property.IDLabel})
	require.NoError(t, err)
	assert.Equal(t, db.InitialVersion+1, version)
	v, _ := props.Get(property.IDLabel)
	assert.Equal(t, "renamed", v.Str())
}

type bufferSink struct {
	bytes.Buffer
	closed, canceled bool
}

func (s *bufferSink) ID() string    { return "test" }
func (s *bufferSink) Close() error  { s.closed = true; return nil }
func (s *bufferSink) Cancel() error { s.canceled = true; return nil }

func TestSnapshotCompression(t *testing.T) {
	for _, algo := range compression.Algorithms() {
		t.Run(algo.String(), func(t *testing.T) {
			fsm := NewFSM(algo)
			ctx := context.Background()
			info, props := dbtest.NewContainer(t, uuid.New(), property.CreateOptions{Label: "snap"})
			require.NoError(t, fsm.Store().CreateContainer(ctx, info, props))

			snap, err := fsm.Snapshot()
			require.NoError(t, err)
			sink := &bufferSink{}
			require.NoError(t, snap.Persist(sink))
			assert.True(t, sink.closed)
			assert.False(t, sink.canceled)

			restored := NewFSM(compression.None)
			require.NoError(t, restored.Restore(io.NopCloser(&sink.Buffer)))
			got, err := restored.Store().GetContainer(ctx, info.ID)
			require.NoError(t, err)
			assert.Equal(t, info.ID, got.ID)
		})
	}
}

func TestRestoreUnframedSnapshot(t *testing.T) {
	info, props := dbtest.NewContainer(t, uuid.New(), property.CreateOptions{})
	data, err := json.Marshal(fsmSnapshot{Records: []*db.Record{db.NewRecord(info, props)}})
	require.NoError(t, err)

	fsm := NewFSM(compression.ZSTD)
	require.NoError(t, fsm.Restore(io.NopCloser(bytes.NewReader(data))))
	assert.Equal(t, 1, fsm.Store().Len())
}

func TestNewNodeValidatesConfig(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing id", DefaultConfig("", "127.0.0.1:0", dir), "NodeID is required"},
		{"missing addr", DefaultConfig("n1", "", dir), "BindAddr is required"},
		{"missing dir", DefaultConfig("n1", "127.0.0.1:0", ""), "DataDir is required"},
		{"bad compression", Config{NodeID: "n1", BindAddr: "127.0.0.1:0", DataDir: dir, SnapshotCompression: "brotli"}, "unknown snapshot compression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestHasExistingRaftState(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasExistingRaftState(dir))
	assert.False(t, HasExistingRaftState(filepath.Join(dir, "missing")))
}
