// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package raftdb

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/compression"
	"github.com/LeeDigitalWorks/zapprops/pkg/logger"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Config configures a Raft-replicated store.
type Config struct {
	// Node identity
	NodeID   string `mapstructure:"node_id"`
	BindAddr string `mapstructure:"bind_addr"`
	DataDir  string `mapstructure:"data_dir"`

	// Raft tuning
	HeartbeatTimeout   time.Duration `mapstructure:"heartbeat_timeout"`
	ElectionTimeout    time.Duration `mapstructure:"election_timeout"`
	LeaderLeaseTimeout time.Duration `mapstructure:"leader_lease_timeout"`
	CommitTimeout      time.Duration `mapstructure:"commit_timeout"`
	MaxAppendEntries   int           `mapstructure:"max_append_entries"`

	// ApplyTimeout bounds one replicated write when the caller sets no
	// deadline.
	ApplyTimeout time.Duration `mapstructure:"apply_timeout"`

	// ConsistentReads makes reads confirm leadership first. Without it a
	// deposed leader may serve stale reads for up to a lease.
	ConsistentReads bool `mapstructure:"consistent_reads"`

	// Bootstrap forms a new single-voter cluster if no state exists.
	Bootstrap bool `mapstructure:"bootstrap"`

	// SnapshotCompression is the algorithm FSM snapshots are written with.
	SnapshotCompression compression.Algorithm `mapstructure:"snapshot_compression"`
}

// DefaultConfig returns defaults for a node storing its state in dataDir.
func DefaultConfig(nodeID, bindAddr, dataDir string) Config {
	return Config{
		NodeID:       nodeID,
		BindAddr:     bindAddr,
		DataDir:      dataDir,
		ApplyTimeout: 10 * time.Second,

		SnapshotCompression: compression.ZSTD,
	}
}

// HasExistingRaftState checks if there's existing Raft state in the data
// directory, which distinguishes a restart from a fresh join.
func HasExistingRaftState(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, "raft.db"))
	return err == nil
}

// Node owns a raft.Raft instance and the stores behind it.
type Node struct {
	raft      *raft.Raft
	transport raft.Transport
	logStore  *raftboltdb.BoltStore
}

// NewNode starts a node with a TCP transport and bbolt-backed log storage.
func NewNode(fsm raft.FSM, cfg Config) (*Node, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("NodeID is required")
	}
	if cfg.BindAddr == "" {
		return nil, fmt.Errorf("BindAddr is required")
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("DataDir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, logger.StandardWriter("raft-snapshot"))
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft.db"))
	if err != nil {
		return nil, fmt.Errorf("bolt store: %w", err)
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		logStore.Close()
		return nil, fmt.Errorf("resolve tcp addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, logger.StandardWriter("raft-transport"))
	if err != nil {
		logStore.Close()
		return nil, fmt.Errorf("tcp transport: %w", err)
	}

	bootstrap := cfg.Bootstrap && !HasExistingRaftState(cfg.DataDir)
	node, err := newNode(fsm, cfg, logStore, logStore, snapshotStore, transport, bootstrap)
	if err != nil {
		transport.Close()
		logStore.Close()
		return nil, err
	}
	node.logStore = logStore
	return node, nil
}

// newNode starts raft on caller-provided stores.
func newNode(fsm raft.FSM, cfg Config, logs raft.LogStore, stable raft.StableStore,
	snaps raft.SnapshotStore, transport raft.Transport, bootstrap bool) (*Node, error) {
	raftConfig := raft.DefaultConfig()
	raftConfig.Logger = logger.NewRaftLogger("raft")
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)

	if cfg.HeartbeatTimeout > 0 {
		raftConfig.HeartbeatTimeout = cfg.HeartbeatTimeout
	}
	if cfg.ElectionTimeout > 0 {
		raftConfig.ElectionTimeout = cfg.ElectionTimeout
	}
	if cfg.LeaderLeaseTimeout > 0 {
		raftConfig.LeaderLeaseTimeout = cfg.LeaderLeaseTimeout
	}
	if cfg.CommitTimeout > 0 {
		raftConfig.CommitTimeout = cfg.CommitTimeout
	}
	if cfg.MaxAppendEntries > 0 {
		raftConfig.MaxAppendEntries = cfg.MaxAppendEntries
	}

	ra, err := raft.NewRaft(raftConfig, fsm, logs, stable, snaps, transport)
	if err != nil {
		return nil, fmt.Errorf("new raft: %w", err)
	}

	if bootstrap {
		configuration := raft.Configuration{
			Servers: []raft.Server{{ID: raftConfig.LocalID, Address: transport.LocalAddr()}},
		}
		if err := ra.BootstrapCluster(configuration).Error(); err != nil {
			logger.Warn().Err(err).Msg("Bootstrap failed (may already be bootstrapped)")
		} else {
			logger.Info().Str("node", cfg.NodeID).Msg("Bootstrapped Raft cluster")
		}
	}

	return &Node{raft: ra, transport: transport}, nil
}

// IsLeader returns true if this node is the leader
func (n *Node) IsLeader() bool {
	return n.raft.State() == raft.Leader
}

// Leader returns the current leader address
func (n *Node) Leader() string {
	addr, _ := n.raft.LeaderWithID()
	return string(addr)
}

// State returns the current Raft state (Follower, Candidate, Leader, Shutdown)
func (n *Node) State() string {
	return n.raft.State().String()
}

// AddVoter adds a voting member to the cluster
func (n *Node) AddVoter(id, address string, timeout time.Duration) error {
	return n.raft.AddVoter(raft.ServerID(id), raft.ServerAddress(address), 0, timeout).Error()
}

// RemoveServer removes a server from the cluster
func (n *Node) RemoveServer(id string, timeout time.Duration) error {
	return n.raft.RemoveServer(raft.ServerID(id), 0, timeout).Error()
}

// Stats returns Raft stats
func (n *Node) Stats() map[string]string {
	return n.raft.Stats()
}

// WaitForLeader blocks until a leader is elected or timeout
func (n *Node) WaitForLeader(timeout time.Duration) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if n.Leader() != "" {
			return nil
		}
		select {
		case <-ticker.C:
		case <-timer.C:
			return fmt.Errorf("timeout waiting for leader")
		}
	}
}

// Shutdown stops raft and releases the transport and log store.
func (n *Node) Shutdown() error {
	if err := n.raft.Shutdown().Error(); err != nil {
		logger.Error().Err(err).Msg("Error shutting down raft")
		return err
	}
	if c, ok := n.transport.(raft.WithClose); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close transport: %w", err)
		}
	}
	if n.logStore != nil {
		return n.logStore.Close()
	}
	return nil
}
