// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"testing"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockDB is a testify mock of db.DB.
type mockDB struct {
	mock.Mock
}

func newMockDB(t *testing.T) *mockDB {
	m := &mockDB{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockDB) CreateContainer(ctx context.Context, info *types.ContainerInfo, props property.Set) error {
	return m.Called(ctx, info, props).Error(0)
}

func (m *mockDB) GetContainer(ctx context.Context, id uuid.UUID) (*types.ContainerInfo, error) {
	args := m.Called(ctx, id)
	info, _ := args.Get(0).(*types.ContainerInfo)
	return info, args.Error(1)
}

func (m *mockDB) GetProperties(ctx context.Context, id uuid.UUID, ids []property.ID) (property.Set, uint64, error) {
	args := m.Called(ctx, id, ids)
	props, _ := args.Get(0).(property.Set)
	return props, args.Get(1).(uint64), args.Error(2)
}

func (m *mockDB) PutProperties(ctx context.Context, id uuid.UUID, props property.Set, expectedVersion uint64) (uint64, error) {
	args := m.Called(ctx, id, props, expectedVersion)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockDB) DestroyContainer(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockDB) ListContainers(ctx context.Context, params *db.ListContainersParams) (*db.ListContainersResult, error) {
	args := m.Called(ctx, params)
	res, _ := args.Get(0).(*db.ListContainersResult)
	return res, args.Error(1)
}

func (m *mockDB) AddSnapshot(ctx context.Context, id uuid.UUID, epoch uint64, limit uint64) error {
	return m.Called(ctx, id, epoch, limit).Error(0)
}

func (m *mockDB) DeleteSnapshot(ctx context.Context, id uuid.UUID, epoch uint64) error {
	return m.Called(ctx, id, epoch).Error(0)
}

func (m *mockDB) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockDB) Close() error {
	return m.Called().Error(0)
}

var _ db.DB = (*mockDB)(nil)
