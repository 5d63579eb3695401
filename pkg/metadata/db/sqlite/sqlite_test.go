// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/dbtest"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(DefaultConfig(filepath.Join(t.TempDir(), "props.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestConformance(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) db.DB { return newTestDB(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestDB(t)
	require.NoError(t, s.Migrate(context.Background()))

	var version int
	require.NoError(t, s.DB().QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, 2, version)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "props.db")

	s, err := NewSQLite(DefaultConfig(path))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))

	info, props := dbtest.NewContainer(t, uuid.New(), property.CreateOptions{Type: "SEISMIC", Label: "survey"})
	require.NoError(t, s.CreateContainer(ctx, info, props))
	_, err = s.PutProperties(ctx, info.ID, property.Set{{ID: property.IDChecksumChunkSize, Value: property.Uint64(1 << 30)}}, 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(DefaultConfig(path))
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Migrate(ctx))

	got, version, err := reopened.GetProperties(ctx, info.ID, []property.ID{property.IDLabel, property.IDLayoutType, property.IDChecksumChunkSize})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), version)
	assert.Equal(t, "survey", got[0].Value.Str())
	assert.Equal(t, uint32(property.LayoutSeismic), got[1].Value.Enum())
	assert.Equal(t, uint64(1<<30), got[2].Value.Uint64())
}

func TestUniqueViolationMapsToExists(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	info, props := dbtest.NewContainer(t, uuid.New(), property.CreateOptions{})
	require.NoError(t, s.CreateContainer(ctx, info, props))

	_, err := s.DB().ExecContext(ctx, `INSERT INTO containers (id, pool_id, created_at, version) VALUES (?, ?, 0, 1)`,
		info.ID.String(), info.PoolID.String())
	require.Error(t, err)
	assert.True(t, s.Dialect().IsUniqueViolation(err))
}
