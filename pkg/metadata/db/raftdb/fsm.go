// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package raftdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/LeeDigitalWorks/zapprops/pkg/compression"
	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/memory"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
	"github.com/hashicorp/raft"
)

// Commands that go through Raft
type CommandType string

const (
	CommandCreateContainer  CommandType = "create_container"
	CommandPutProperties    CommandType = "put_properties"
	CommandDestroyContainer CommandType = "destroy_container"
	CommandAddSnapshot      CommandType = "add_snapshot"
	CommandDeleteSnapshot   CommandType = "delete_snapshot"
)

// Command is one replicated write. Timestamp is taken on the leader so
// every replica records the same modification time.
type Command struct {
	Type      CommandType `json:"type"`
	Timestamp int64       `json:"ts"`

	ID              uuid.UUID            `json:"id"`
	Info            *types.ContainerInfo `json:"info,omitempty"`
	Props           property.Set         `json:"props,omitempty"`
	ExpectedVersion uint64               `json:"expected_version,omitempty"`
	Epoch           uint64               `json:"epoch,omitempty"`
	Limit           uint64               `json:"limit,omitempty"`
}

// applyResult is the FSM response to a Command.
type applyResult struct {
	Version uint64
	Err     error
}

// FSM applies replicated container writes to an in-memory store.
type FSM struct {
	store *memory.DB
	// clock holds the timestamp of the command being applied.
	clock atomic.Int64
	// snapshots are written with this algorithm; Restore reads any.
	compression compression.Algorithm
}

// NewFSM returns an empty state machine whose snapshots are compressed
// with algo.
func NewFSM(algo compression.Algorithm) *FSM {
	if algo == "" {
		algo = compression.None
	}
	f := &FSM{compression: algo}
	f.store = memory.New(memory.WithClock(f.clock.Load))
	return f
}

// Store exposes the applied state for reads.
func (f *FSM) Store() *memory.DB { return f.store }

// Apply applies a Raft log entry to the FSM.
func (f *FSM) Apply(l *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		logger.Error().Err(err).Uint64("index", l.Index).Msg("Failed to unmarshal raft command")
		return applyResult{Err: fmt.Errorf("decode raft command: %w", err)}
	}

	f.clock.Store(cmd.Timestamp)
	ctx := context.Background()

	logger.Debug().
		Str("type", string(cmd.Type)).
		Str("container", cmd.ID.String()).
		Uint64("index", l.Index).
		Msg("Applying raft command")

	switch cmd.Type {
	case CommandCreateContainer:
		return applyResult{Err: f.store.CreateContainer(ctx, cmd.Info, cmd.Props)}
	case CommandPutProperties:
		version, err := f.store.PutProperties(ctx, cmd.ID, cmd.Props, cmd.ExpectedVersion)
		return applyResult{Version: version, Err: err}
	case CommandDestroyContainer:
		return applyResult{Err: f.store.DestroyContainer(ctx, cmd.ID)}
	case CommandAddSnapshot:
		return applyResult{Err: f.store.AddSnapshot(ctx, cmd.ID, cmd.Epoch, cmd.Limit)}
	case CommandDeleteSnapshot:
		return applyResult{Err: f.store.DeleteSnapshot(ctx, cmd.ID, cmd.Epoch)}
	default:
		return applyResult{Err: fmt.Errorf("unknown command type: %s", cmd.Type)}
	}
}

// Snapshot returns a point-in-time copy of every record.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{Records: f.store.Export(), compression: f.compression}, nil
}

// Restore replaces the FSM state with a persisted snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	r, algo, err := compression.NewReader(rc)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer r.Close()

	var snapshot fsmSnapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	f.store.Import(snapshot.Records)

	logger.Info().
		Int("containers", len(snapshot.Records)).
		Stringer("compression", algo).
		Msg("Restored state from snapshot")
	return nil
}

type fsmSnapshot struct {
	Records []*db.Record `json:"records"`

	compression compression.Algorithm
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		w, err := compression.NewWriter(s.compression, sink)
		if err != nil {
			return err
		}
		if err := json.NewEncoder(w).Encode(s); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
		return err
	}
	return nil
}

func (s *fsmSnapshot) Release() {}

var _ raft.FSM = (*FSM)(nil)
