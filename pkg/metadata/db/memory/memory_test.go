// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"testing"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/dbtest"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConformance(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) db.DB { return New() })
}

func TestMetricsDBConformance(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) db.DB { return db.NewMetricsDB(New()) })
}

func TestExportImport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := New(WithClock(func() int64 { return 42 }))
	pool := uuid.New()
	for i := 0; i < 3; i++ {
		info, props := dbtest.NewContainer(t, pool, property.CreateOptions{})
		require.NoError(t, src.CreateContainer(ctx, info, props))
		_, err := src.PutProperties(ctx, info.ID, property.Set{{ID: property.IDSnapshotMax, Value: property.Uint64(uint64(i + 1))}}, 0)
		require.NoError(t, err)
		require.NoError(t, src.AddSnapshot(ctx, info.ID, uint64(100+i), 0))
	}

	exported := src.Export()
	require.Len(t, exported, 3)

	dst := New()
	dst.Import(exported)
	assert.Equal(t, 3, dst.Len())

	// Mutating the export must not reach either store.
	exported[0].Props[0].Value = property.String("changed")

	for _, rec := range src.Export() {
		info, err := dst.GetContainer(ctx, rec.Info.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.Info, info)
		assert.Equal(t, int64(42), info.ModifiedAt)

		props, version, err := dst.GetProperties(ctx, rec.Info.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), version)
		assert.True(t, rec.Props.Equal(props))
	}

	listed, err := dst.ListContainers(ctx, &db.ListContainersParams{PoolID: pool})
	require.NoError(t, err)
	assert.Len(t, listed.Containers, 3)

	dst.Import(nil)
	assert.Equal(t, 0, dst.Len())
}
