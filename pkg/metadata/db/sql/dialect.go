// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package sql provides a dialect-aware SQL container store.
// Queries are written once with PostgreSQL-style placeholders and rewritten
// per dialect, so PostgreSQL, MySQL/Vitess and SQLite share one
// implementation.
package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
)

// Dialect abstracts database-specific SQL syntax differences.
type Dialect interface {
	// Name returns the dialect name (e.g., "postgres", "mysql").
	Name() string

	// Placeholder returns the placeholder for the nth parameter (1-indexed).
	Placeholder(n int) string

	// ReplacePlaceholders converts PostgreSQL-style placeholders ($1, $2, ...)
	// to the dialect's format.
	ReplacePlaceholders(query string) string

	// UpsertSuffix returns the suffix for INSERT statements that should
	// update on conflict.
	// PostgreSQL/SQLite: "ON CONFLICT (cols) DO UPDATE SET col = EXCLUDED.col"
	// MySQL/Vitess: "ON DUPLICATE KEY UPDATE col = VALUES(col)"
	UpsertSuffix(conflictColumns string, updateColumns []string) string

	// LockSuffix returns the row-locking suffix for a SELECT inside a write
	// transaction. SQLite locks the whole database instead.
	LockSuffix() string

	// ReadTxOptions returns the options for snapshot-consistent reads.
	ReadTxOptions() *sql.TxOptions

	// IsUniqueViolation reports whether err is a duplicate-key error.
	IsUniqueViolation(err error) bool
}

var dollarPlaceholder = regexp.MustCompile(`\$(\d+)`)

func repeatableRead() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

func onConflictUpdate(conflictColumns string, updateColumns []string) string {
	if len(updateColumns) == 0 {
		return ""
	}
	updates := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		updates[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", conflictColumns, strings.Join(updates, ", "))
}

// ============================================================================
// PostgreSQL Dialect
// ============================================================================

// PostgresDialect implements Dialect for PostgreSQL and CockroachDB.
type PostgresDialect struct{}

var _ Dialect = PostgresDialect{}

func (d PostgresDialect) Name() string { return "postgres" }

func (d PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d PostgresDialect) ReplacePlaceholders(query string) string { return query }

func (d PostgresDialect) UpsertSuffix(conflictColumns string, updateColumns []string) string {
	return onConflictUpdate(conflictColumns, updateColumns)
}

func (d PostgresDialect) LockSuffix() string { return " FOR UPDATE" }

func (d PostgresDialect) ReadTxOptions() *sql.TxOptions { return repeatableRead() }

func (d PostgresDialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ============================================================================
// MySQL/Vitess Dialect
// ============================================================================

// MySQLDialect implements Dialect for MySQL/Vitess.
type MySQLDialect struct{}

var _ Dialect = MySQLDialect{}

func (d MySQLDialect) Name() string { return "mysql" }

func (d MySQLDialect) Placeholder(n int) string { return "?" }

// ReplacePlaceholders rewrites every $n to ?. Arguments bind by position, so
// a query must reference each placeholder once and in order.
func (d MySQLDialect) ReplacePlaceholders(query string) string {
	return dollarPlaceholder.ReplaceAllString(query, "?")
}

func (d MySQLDialect) UpsertSuffix(conflictColumns string, updateColumns []string) string {
	if len(updateColumns) == 0 {
		return ""
	}
	updates := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		updates[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
}

func (d MySQLDialect) LockSuffix() string { return " FOR UPDATE" }

func (d MySQLDialect) ReadTxOptions() *sql.TxOptions { return repeatableRead() }

func (d MySQLDialect) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

// ============================================================================
// SQLite Dialect
// ============================================================================

// SQLiteDialect implements Dialect for SQLite.
type SQLiteDialect struct{}

var _ Dialect = SQLiteDialect{}

// sqliteConstraint is the primary result code of constraint failures.
const sqliteConstraint = 19

func (d SQLiteDialect) Name() string { return "sqlite" }

func (d SQLiteDialect) Placeholder(n int) string { return fmt.Sprintf("?%d", n) }

// ReplacePlaceholders rewrites $n to ?n. SQLite would treat $1 as a named
// parameter numbered by first appearance rather than by its digits.
func (d SQLiteDialect) ReplacePlaceholders(query string) string {
	return dollarPlaceholder.ReplaceAllString(query, "?$1")
}

func (d SQLiteDialect) UpsertSuffix(conflictColumns string, updateColumns []string) string {
	return onConflictUpdate(conflictColumns, updateColumns)
}

func (d SQLiteDialect) LockSuffix() string { return "" }

// ReadTxOptions returns nil; SQLite transactions are serializable.
func (d SQLiteDialect) ReadTxOptions() *sql.TxOptions { return nil }

func (d SQLiteDialect) IsUniqueViolation(err error) bool {
	var sqlErr *sqlite.Error
	return errors.As(err, &sqlErr) && sqlErr.Code()&0xff == sqliteConstraint
}
