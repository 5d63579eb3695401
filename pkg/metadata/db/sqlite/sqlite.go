// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlite provides an embedded SQLite implementation of the db.DB
// interface for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	dbsql "github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/sql"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Config holds SQLite configuration
type Config struct {
	// Path is the database file. It is created if missing.
	Path string

	// BusyTimeout bounds how long a statement waits on a locked database.
	BusyTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLite implements db.DB on an SQLite file
type SQLite struct {
	*dbsql.Store
	config Config
}

// NewSQLite opens (creating if needed) the database at cfg.Path.
func NewSQLite(cfg Config) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single pooled connection serializes
	// transactions instead of failing them with SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	store := dbsql.NewStore(sqlDB, dbsql.SQLiteDialect{}, dbsql.Config{
		DSN:    cfg.Path,
		Driver: db.DriverSQLite,
	})
	return &SQLite{Store: store, config: cfg}, nil
}

// Ensure SQLite implements db.DB
var _ db.DB = (*SQLite)(nil)
