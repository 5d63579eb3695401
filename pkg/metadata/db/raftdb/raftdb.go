// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package raftdb replicates the container store across a Raft cluster.
//
// Writes are encoded as commands, committed through the Raft log and applied
// by every replica to an in-memory store. Only the leader accepts writes;
// followers return db.ErrNotLeader so clients retry against another node.
// Reads are served from the local replica.
package raftdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
	"github.com/hashicorp/raft"
)

// DB implements db.DB on a Raft-replicated FSM.
type DB struct {
	node   *Node
	fsm    *FSM
	config Config
}

// New starts a Raft node with durable storage under cfg.DataDir.
func New(cfg Config) (*DB, error) {
	if cfg.SnapshotCompression != "" && !cfg.SnapshotCompression.IsValid() {
		return nil, fmt.Errorf("unknown snapshot compression %q", cfg.SnapshotCompression)
	}
	fsm := NewFSM(cfg.SnapshotCompression)
	node, err := NewNode(fsm, cfg)
	if err != nil {
		return nil, err
	}
	return newDB(node, fsm, cfg), nil
}

func newDB(node *Node, fsm *FSM, cfg Config) *DB {
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = 10 * time.Second
	}
	return &DB{node: node, fsm: fsm, config: cfg}
}

// Node returns the underlying Raft node for cluster management.
func (d *DB) Node() *Node { return d.node }

// Migrate is a no-op; the state machine has no schema.
func (d *DB) Migrate(ctx context.Context) error { return nil }

func (d *DB) Close() error {
	return d.node.Shutdown()
}

// Ping reports an error while the cluster has no leader.
func (d *DB) Ping(ctx context.Context) error {
	if d.node.Leader() == "" {
		return fmt.Errorf("raft: no leader (state %s)", d.node.State())
	}
	return nil
}

// ============================================================================
// Container Operations
// ============================================================================

func (d *DB) CreateContainer(ctx context.Context, info *types.ContainerInfo, props property.Set) error {
	if err := db.CheckCreate(info, props); err != nil {
		return err
	}
	_, err := d.apply(ctx, &Command{
		Type:  CommandCreateContainer,
		ID:    info.ID,
		Info:  info,
		Props: props,
	})
	return err
}

func (d *DB) GetContainer(ctx context.Context, id uuid.UUID) (*types.ContainerInfo, error) {
	if err := d.verifyRead(); err != nil {
		return nil, err
	}
	return d.fsm.Store().GetContainer(ctx, id)
}

func (d *DB) GetProperties(ctx context.Context, id uuid.UUID, ids []property.ID) (property.Set, uint64, error) {
	if err := d.verifyRead(); err != nil {
		return nil, 0, err
	}
	return d.fsm.Store().GetProperties(ctx, id, ids)
}

func (d *DB) PutProperties(ctx context.Context, id uuid.UUID, props property.Set, expectedVersion uint64) (uint64, error) {
	if err := db.CheckPut(props); err != nil {
		return 0, err
	}
	return d.apply(ctx, &Command{
		Type:            CommandPutProperties,
		ID:              id,
		Props:           props,
		ExpectedVersion: expectedVersion,
	})
}

func (d *DB) DestroyContainer(ctx context.Context, id uuid.UUID) error {
	_, err := d.apply(ctx, &Command{Type: CommandDestroyContainer, ID: id})
	return err
}

func (d *DB) ListContainers(ctx context.Context, params *db.ListContainersParams) (*db.ListContainersResult, error) {
	if err := d.verifyRead(); err != nil {
		return nil, err
	}
	return d.fsm.Store().ListContainers(ctx, params)
}

// ============================================================================
// Snapshot Operations
// ============================================================================

func (d *DB) AddSnapshot(ctx context.Context, id uuid.UUID, epoch uint64, limit uint64) error {
	_, err := d.apply(ctx, &Command{Type: CommandAddSnapshot, ID: id, Epoch: epoch, Limit: limit})
	return err
}

func (d *DB) DeleteSnapshot(ctx context.Context, id uuid.UUID, epoch uint64) error {
	_, err := d.apply(ctx, &Command{Type: CommandDeleteSnapshot, ID: id, Epoch: epoch})
	return err
}

// ============================================================================
// Helpers
// ============================================================================

// apply commits cmd through the log and returns the FSM result.
func (d *DB) apply(ctx context.Context, cmd *Command) (uint64, error) {
	if !d.node.IsLeader() {
		return 0, fmt.Errorf("%w: leader is %q", db.ErrNotLeader, d.node.Leader())
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cmd.Timestamp = time.Now().UnixNano()
	data, err := json.Marshal(cmd)
	if err != nil {
		return 0, fmt.Errorf("encode raft command: %w", err)
	}

	timeout := d.config.ApplyTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	future := d.node.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return 0, raftError(err)
	}
	res, ok := future.Response().(applyResult)
	if !ok {
		return 0, fmt.Errorf("unexpected raft response %T", future.Response())
	}
	return res.Version, res.Err
}

func (d *DB) verifyRead() error {
	if !d.config.ConsistentReads {
		return nil
	}
	if err := d.node.raft.VerifyLeader().Error(); err != nil {
		return raftError(err)
	}
	return nil
}

// raftError maps leadership failures to db.ErrNotLeader.
func raftError(err error) error {
	switch {
	case errors.Is(err, raft.ErrNotLeader),
		errors.Is(err, raft.ErrLeadershipLost),
		errors.Is(err, raft.ErrLeadershipTransferInProgress),
		errors.Is(err, raft.ErrRaftShutdown):
		return fmt.Errorf("%w: %v", db.ErrNotLeader, err)
	default:
		return fmt.Errorf("raft apply: %w", err)
	}
}

// Ensure DB implements db.DB
var _ db.DB = (*DB)(nil)
