// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
)

// CreateContainerRequest contains parameters for creating a container
type CreateContainerRequest struct {
	PoolID uuid.UUID
	// ContainerID is generated when nil.
	ContainerID uuid.UUID
	Options     property.CreateOptions
}

// CreateContainerResult contains the result of creating a container
type CreateContainerResult struct {
	Info       *types.ContainerInfo
	Properties property.Set
	Version    uint64
}

// QueryContainerResult contains the result of a container query
type QueryContainerResult struct {
	Info       *types.ContainerInfo
	Properties property.Set
	Version    uint64
}

// SetPropertiesRequest contains parameters for updating properties
type SetPropertiesRequest struct {
	Handle     uuid.UUID
	Properties property.Set
	// ExpectedVersion, when non-zero, must equal the current version.
	ExpectedVersion uint64
}

// ListContainersRequest contains parameters for listing containers
type ListContainersRequest struct {
	PoolID            uuid.UUID
	MaxContainers     int
	ContinuationToken string
}

// ListContainersResult contains the result of listing containers
type ListContainersResult struct {
	Containers            []*types.ContainerInfo
	NextContinuationToken string
	IsTruncated           bool
}
