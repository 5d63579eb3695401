// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/compression"
	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/bolt"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/memory"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/postgres"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/raftdb"
	dbredis "github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/redis"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/sqlite"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/vitess"

	"github.com/spf13/pflag"
)

// raftLeaderTimeout bounds the wait for an election at startup.
const raftLeaderTimeout = 30 * time.Second

// DatabaseOpts selects and configures the property store backend.
type DatabaseOpts struct {
	Driver string
	DSN    string
	// Path is the file used by the sqlite and bolt drivers.
	Path string

	MaxOpenConns int
	MaxIdleConns int
	TLSMode      string
	TLSCAFile    string

	Redis dbredis.Config

	Raft raftdb.Config
	// RaftPeers lists "id=addr" voters the bootstrap leader adds.
	RaftPeers []string
}

func addDatabaseFlags(f *pflag.FlagSet) {
	f.String("db_driver", string(db.DriverSQLite), "Database driver (memory, sqlite, bolt, redis, raft, postgres, cockroachdb, vitess, mysql)")
	f.String("db_dsn", "", "Database connection string (postgres, cockroachdb, vitess, mysql)")
	f.String("db_path", "/tmp/zapprops/zapprops.db", "Database file (sqlite, bolt)")
	f.Int("db_max_open_conns", db.DefaultMaxOpenConns, "Maximum open database connections")
	f.Int("db_max_idle_conns", db.DefaultMaxIdleConns, "Maximum idle database connections")
	f.String("db_tls_mode", "", "Database TLS mode for vitess/mysql (disabled, preferred, required, verify-ca)")
	f.String("db_tls_ca_file", "", "Path to CA certificate file for database TLS (verify-ca mode)")

	redisDefaults := dbredis.DefaultConfig()
	f.String("redis_addr", redisDefaults.Addr, "Redis address (redis driver)")
	f.String("redis_password", "", "Redis password (redis driver)")
	f.Int("redis_db", 0, "Redis database number (redis driver)")
	f.Int("redis_pool_size", redisDefaults.PoolSize, "Redis connection pool size (redis driver)")
	f.String("redis_key_prefix", redisDefaults.KeyPrefix, "Prefix for every Redis key (redis driver)")

	f.String("raft_node_id", "", "Stable raft node id (defaults to hostname)")
	f.String("raft_bind_addr", "127.0.0.1:8092", "Raft transport address")
	f.String("raft_data_dir", "/tmp/zapprops/raft", "Raft log and snapshot directory")
	f.Bool("raft_bootstrap", false, "Bootstrap a new cluster when no raft state exists")
	f.Bool("raft_consistent_reads", true, "Confirm leadership before serving reads")
	f.StringSlice("raft_peers", nil, "Voters added by the bootstrap leader, as id=addr")
	f.String("raft_snapshot_compression", string(compression.ZSTD), "Raft snapshot compression (none, lz4, zstd, s2)")
}

func loadDatabaseOpts(f *FlagLoader) DatabaseOpts {
	redisCfg := dbredis.DefaultConfig()
	redisCfg.Addr = f.String("redis_addr")
	redisCfg.Password = f.String("redis_password")
	redisCfg.DB = f.Int("redis_db")
	redisCfg.PoolSize = f.Int("redis_pool_size")
	redisCfg.KeyPrefix = f.String("redis_key_prefix")

	nodeID := f.String("raft_node_id")
	if nodeID == "" {
		nodeID = os.Getenv("NODE_ID")
	}
	if nodeID == "" {
		nodeID, _ = os.Hostname()
	}
	raftCfg := raftdb.DefaultConfig(nodeID, f.String("raft_bind_addr"), f.String("raft_data_dir"))
	raftCfg.Bootstrap = f.Bool("raft_bootstrap")
	raftCfg.ConsistentReads = f.Bool("raft_consistent_reads")
	raftCfg.SnapshotCompression = compression.Algorithm(f.String("raft_snapshot_compression"))

	return DatabaseOpts{
		Driver:       f.String("db_driver"),
		DSN:          f.String("db_dsn"),
		Path:         f.String("db_path"),
		MaxOpenConns: f.Int("db_max_open_conns"),
		MaxIdleConns: f.Int("db_max_idle_conns"),
		TLSMode:      f.String("db_tls_mode"),
		TLSCAFile:    f.String("db_tls_ca_file"),
		Redis:        redisCfg,
		Raft:         raftCfg,
		RaftPeers:    f.StringSlice("raft_peers"),
	}
}

func initializeDatabase(opts DatabaseOpts) (db.DB, error) {
	driver := db.Driver(opts.Driver)
	logger.Info().Str("driver", string(driver)).Str("dsn", maskDSN(opts.DSN)).Msg("initializing database")

	switch driver {
	case db.DriverMemory:
		logger.Warn().Msg("memory driver keeps nothing across restarts")
		return memory.New(), nil
	case db.DriverSQLite:
		if err := ensureParentDir(opts.Path); err != nil {
			return nil, err
		}
		return sqlite.NewSQLite(sqlite.DefaultConfig(opts.Path))
	case db.DriverBolt:
		if err := ensureParentDir(opts.Path); err != nil {
			return nil, err
		}
		return bolt.NewBolt(bolt.DefaultConfig(opts.Path))
	case db.DriverRedis:
		return dbredis.NewRedis(opts.Redis)
	case db.DriverRaft:
		return initializeRaft(opts)
	case db.DriverVitess, db.DriverMySQL:
		if opts.DSN == "" {
			return nil, fmt.Errorf("--db_dsn required for %s driver", driver)
		}
		cfg := vitess.DefaultConfig(opts.DSN)
		cfg.MaxOpenConns = opts.MaxOpenConns
		cfg.MaxIdleConns = opts.MaxIdleConns
		cfg.TLSMode = vitess.TLSMode(opts.TLSMode)
		cfg.TLSCAFile = opts.TLSCAFile
		return vitess.NewVitess(cfg)
	case db.DriverPostgres, db.DriverCockroach:
		if opts.DSN == "" {
			return nil, fmt.Errorf("--db_dsn required for %s driver", driver)
		}
		cfg := postgres.DefaultConfig(opts.DSN, driver)
		cfg.MaxOpenConns = opts.MaxOpenConns
		cfg.MaxIdleConns = opts.MaxIdleConns
		return postgres.NewPostgres(cfg)
	default:
		return nil, fmt.Errorf("unknown driver: %s", driver)
	}
}

func initializeRaft(opts DatabaseOpts) (*raftdb.DB, error) {
	cfg := opts.Raft
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("--raft_node_id required for %s driver", db.DriverRaft)
	}
	if cfg.Bootstrap && raftdb.HasExistingRaftState(cfg.DataDir) {
		logger.Info().Str("data_dir", cfg.DataDir).Msg("existing raft state found, skipping bootstrap")
		cfg.Bootstrap = false
	}
	peers, err := parseRaftPeers(opts.RaftPeers)
	if err != nil {
		return nil, err
	}

	d, err := raftdb.New(cfg)
	if err != nil {
		return nil, err
	}
	node := d.Node()
	if !cfg.Bootstrap {
		logger.Info().Str("node_id", cfg.NodeID).Msg("raft node started, waiting to be added by the leader")
		return d, nil
	}

	if err := node.WaitForLeader(raftLeaderTimeout); err != nil {
		d.Close()
		return nil, fmt.Errorf("wait for raft leader: %w", err)
	}
	if node.IsLeader() {
		for id, addr := range peers {
			if err := node.AddVoter(id, addr, 10*time.Second); err != nil {
				logger.Warn().Err(err).Str("peer", id).Str("addr", addr).Msg("failed to add raft voter")
				continue
			}
			logger.Info().Str("peer", id).Str("addr", addr).Msg("added raft voter")
		}
	}
	logger.Info().Str("node_id", cfg.NodeID).Str("leader", node.Leader()).Msg("raft cluster ready")
	return d, nil
}

// parseRaftPeers parses "id=addr" pairs.
func parseRaftPeers(specs []string) (map[string]string, error) {
	peers := make(map[string]string, len(specs))
	for _, s := range specs {
		id, addr, ok := strings.Cut(s, "=")
		id, addr = strings.TrimSpace(id), strings.TrimSpace(addr)
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("invalid raft peer %q, want id=addr", s)
		}
		peers[id] = addr
	}
	return peers, nil
}

func ensureParentDir(path string) error {
	if path == "" {
		return fmt.Errorf("--db_path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return "(none)"
	}
	if len(dsn) > 20 {
		return dsn[:10] + "***" + dsn[len(dsn)-5:]
	}
	return "***"
}
