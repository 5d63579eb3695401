// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPostgresDialect_Placeholder(t *testing.T) {
	d := PostgresDialect{}

	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "$10", d.Placeholder(10))
}

func TestPostgresDialect_ReplacePlaceholders(t *testing.T) {
	d := PostgresDialect{}

	// PostgreSQL dialect should not change placeholders
	query := "SELECT version FROM containers WHERE id = $1 AND pool_id = $2"
	assert.Equal(t, query, d.ReplacePlaceholders(query))
}

func TestPostgresDialect_UpsertSuffix(t *testing.T) {
	d := PostgresDialect{}

	assert.Equal(t,
		" ON CONFLICT (container_id, prop_id) DO UPDATE SET kind = EXCLUDED.kind, num_val = EXCLUDED.num_val",
		d.UpsertSuffix("container_id, prop_id", []string{"kind", "num_val"}))
	assert.Equal(t, "", d.UpsertSuffix("id", nil))
}

func TestMySQLDialect_ReplacePlaceholders(t *testing.T) {
	d := MySQLDialect{}

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "simple",
			query: "SELECT * FROM containers WHERE id = $1",
			want:  "SELECT * FROM containers WHERE id = ?",
		},
		{
			name:  "multiple",
			query: "INSERT INTO containers VALUES ($1, $2, $3)",
			want:  "INSERT INTO containers VALUES (?, ?, ?)",
		},
		{
			name:  "double digit",
			query: "VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)",
			want:  "VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		},
		{
			name:  "beyond fifty",
			query: "WHERE container_id IN ($50, $51, $120)",
			want:  "WHERE container_id IN (?, ?, ?)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, d.ReplacePlaceholders(tc.query))
		})
	}
}

func TestMySQLDialect_UpsertSuffix(t *testing.T) {
	d := MySQLDialect{}

	assert.Equal(t,
		" ON DUPLICATE KEY UPDATE kind = VALUES(kind), str_val = VALUES(str_val)",
		d.UpsertSuffix("container_id, prop_id", []string{"kind", "str_val"}))
}

func TestSQLiteDialect_ReplacePlaceholders(t *testing.T) {
	d := SQLiteDialect{}

	assert.Equal(t, "?2", d.Placeholder(2))
	assert.Equal(t,
		"UPDATE containers SET version = ?1, modified_at = ?2 WHERE id = ?3",
		d.ReplacePlaceholders("UPDATE containers SET version = $1, modified_at = $2 WHERE id = $3"))
	assert.Equal(t, "", d.LockSuffix())
	assert.Nil(t, d.ReadTxOptions())
}

func TestReadTxOptions(t *testing.T) {
	for _, d := range []Dialect{PostgresDialect{}, MySQLDialect{}} {
		opts := d.ReadTxOptions()
		if assert.NotNil(t, opts, d.Name()) {
			assert.Equal(t, sql.LevelRepeatableRead, opts.Isolation)
			assert.True(t, opts.ReadOnly)
		}
		assert.Equal(t, " FOR UPDATE", d.LockSuffix())
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgDup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	myDup := fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})

	assert.True(t, PostgresDialect{}.IsUniqueViolation(pgDup))
	assert.False(t, PostgresDialect{}.IsUniqueViolation(&pgconn.PgError{Code: "40001"}))
	assert.False(t, PostgresDialect{}.IsUniqueViolation(myDup))

	assert.True(t, MySQLDialect{}.IsUniqueViolation(myDup))
	assert.False(t, MySQLDialect{}.IsUniqueViolation(&mysql.MySQLError{Number: 1213}))
	assert.False(t, MySQLDialect{}.IsUniqueViolation(errors.New("duplicate")))

	assert.False(t, SQLiteDialect{}.IsUniqueViolation(errors.New("UNIQUE constraint failed")))
}
