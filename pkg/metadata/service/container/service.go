// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package container implements container lifecycle and property operations
// on top of a db.DB and an in-memory handle table.
package container

import (
	"context"

	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
)

// Service defines the container operations served over gRPC and used by
// the CLI. Every error returned is an *Error.
type Service interface {
	// CreateContainer resolves the create options and stores the container
	// with its full property set at version 1. Nothing is left behind on
	// failure.
	CreateContainer(ctx context.Context, req *CreateContainerRequest) (*CreateContainerResult, error)

	// OpenContainer returns a new handle on an existing container.
	OpenContainer(ctx context.Context, id uuid.UUID, flags types.OpenFlag) (types.Handle, error)

	// CloseContainer releases a handle.
	CloseContainer(ctx context.Context, handle uuid.UUID) error

	// QueryContainer returns the requested properties in request order,
	// with dependency rules applied, plus the container's core metadata.
	// An empty id list selects every property.
	QueryContainer(ctx context.Context, handle uuid.UUID, ids []property.ID) (*QueryContainerResult, error)

	// SetProperties updates mutable properties through a read-write handle
	// and returns the new version.
	SetProperties(ctx context.Context, req *SetPropertiesRequest) (uint64, error)

	// CreateSnapshot records a snapshot epoch and returns it. Epoch 0 takes
	// the current time.
	CreateSnapshot(ctx context.Context, handle uuid.UUID, epoch uint64) (uint64, error)

	// DestroySnapshot removes a snapshot epoch.
	DestroySnapshot(ctx context.Context, handle uuid.UUID, epoch uint64) error

	// DestroyContainer removes a container. Open handles make it fail with
	// ErrCodeBusy unless force is set, which evicts them.
	DestroyContainer(ctx context.Context, id uuid.UUID, force bool) error

	// ListContainers pages through containers ordered by id.
	ListContainers(ctx context.Context, req *ListContainersRequest) (*ListContainersResult, error)
}
