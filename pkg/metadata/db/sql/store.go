// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
)

// Config is the connection setup shared by every SQL backend. Zero pool
// settings fall back to the db package defaults.
type Config struct {
	DSN    string
	Driver db.Driver

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(dsn string, driver db.Driver) Config {
	return Config{
		DSN:             dsn,
		Driver:          driver,
		MaxOpenConns:    db.DefaultMaxOpenConns,
		MaxIdleConns:    db.DefaultMaxIdleConns,
		ConnMaxLifetime: time.Duration(db.DefaultConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(db.DefaultConnMaxIdleTime) * time.Second,
	}
}

// Store is a dialect-aware SQL container store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	config  Config
}

// NewStore creates a new SQL store with the given dialect.
func NewStore(sqlDB *sql.DB, dialect Dialect, config Config) *Store {
	return &Store{
		db:      sqlDB,
		dialect: dialect,
		config:  config,
	}
}

// Open opens a database connection and returns a configured Store.
func Open(driverName string, dialect Dialect, cfg Config) (*Store, error) {
	sqlDB, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, db.DefaultMaxOpenConns))
	sqlDB.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, db.DefaultMaxIdleConns))
	sqlDB.SetConnMaxLifetime(orDefault(cfg.ConnMaxLifetime, time.Duration(db.DefaultConnMaxLifetime)*time.Second))
	sqlDB.SetConnMaxIdleTime(orDefault(cfg.ConnMaxIdleTime, time.Duration(db.DefaultConnMaxIdleTime)*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewStore(sqlDB, dialect, cfg), nil
}

func orDefault[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// DB returns the underlying *sql.DB for direct access if needed.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect used by this store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ReportPoolStats publishes connection pool usage to the db metrics.
func (s *Store) ReportPoolStats() {
	stats := s.db.Stats()
	db.UpdateConnectionMetrics(stats.InUse, stats.Idle)
}

// ============================================================================
// Query Helpers
// ============================================================================

// Query executes a query with dialect-aware placeholder conversion.
// Write queries using PostgreSQL-style placeholders ($1, $2, ...) and
// they will be automatically converted to the dialect's format.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.ReplacePlaceholders(query), args...)
}

// QueryRow executes a query that returns a single row.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.ReplacePlaceholders(query), args...)
}

// Exec executes a query that doesn't return rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.ReplacePlaceholders(query), args...)
}

// scanner is an interface for sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Querier is the interface for executing SQL queries.
// Both Store and TxStore implement this interface, allowing shared query logic.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Dialect() Dialect
}

var (
	_ Querier = (*Store)(nil)
	_ Querier = (*TxStore)(nil)
)

// ============================================================================
// Transaction Support
// ============================================================================

// TxStore wraps a database transaction with dialect-aware query helpers.
type TxStore struct {
	tx      *sql.Tx
	dialect Dialect
}

// NewTxStore creates a new transaction store wrapper.
func NewTxStore(tx *sql.Tx, dialect Dialect) *TxStore {
	return &TxStore{
		tx:      tx,
		dialect: dialect,
	}
}

// Tx returns the underlying *sql.Tx for direct access if needed.
func (t *TxStore) Tx() *sql.Tx {
	return t.tx
}

// Dialect returns the dialect used by this transaction.
func (t *TxStore) Dialect() Dialect {
	return t.dialect
}

// Query executes a query with dialect-aware placeholder conversion.
func (t *TxStore) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.ReplacePlaceholders(query), args...)
}

// QueryRow executes a query that returns a single row.
func (t *TxStore) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.ReplacePlaceholders(query), args...)
}

// Exec executes a query that doesn't return rows.
func (t *TxStore) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.ReplacePlaceholders(query), args...)
}

// WithTx executes fn within a database transaction. If fn returns an error
// the transaction is rolled back, otherwise it is committed. opts may be nil.
func (s *Store) WithTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *TxStore) error) error {
	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(NewTxStore(sqlTx, s.dialect)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
