// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// ContainerInfo is the core metadata of a container. Property values are
// never stored here; they live in the container's property record.
type ContainerInfo struct {
	ID     uuid.UUID `json:"id"`
	PoolID uuid.UUID `json:"pool_id"`

	CreatedAt int64 `json:"created_at"`
	// ModifiedAt changes with every property or snapshot write.
	ModifiedAt int64 `json:"modified_at,omitempty"`

	// Snapshots holds snapshot epochs in ascending order.
	Snapshots []uint64 `json:"snapshots,omitempty"`

	// NumHandles, OpenedAt and ClosedAt are filled in by the service from
	// its handle table and are not persisted.
	NumHandles int   `json:"num_handles"`
	OpenedAt   int64 `json:"opened_at,omitempty"`
	ClosedAt   int64 `json:"closed_at,omitempty"`
}

// LatestSnapshot returns the highest snapshot epoch, or 0 without snapshots.
func (c *ContainerInfo) LatestSnapshot() uint64 {
	if len(c.Snapshots) == 0 {
		return 0
	}
	return c.Snapshots[len(c.Snapshots)-1]
}

// HasSnapshot reports whether epoch is in the snapshot list.
func (c *ContainerInfo) HasSnapshot(epoch uint64) bool {
	_, found := slices.BinarySearch(c.Snapshots, epoch)
	return found
}

// AddSnapshot inserts epoch keeping the list sorted. It reports false if the
// epoch already exists.
func (c *ContainerInfo) AddSnapshot(epoch uint64) bool {
	i, found := slices.BinarySearch(c.Snapshots, epoch)
	if found {
		return false
	}
	c.Snapshots = slices.Insert(c.Snapshots, i, epoch)
	return true
}

// RemoveSnapshot deletes epoch. It reports false if the epoch was absent.
func (c *ContainerInfo) RemoveSnapshot(epoch uint64) bool {
	i, found := slices.BinarySearch(c.Snapshots, epoch)
	if !found {
		return false
	}
	c.Snapshots = slices.Delete(c.Snapshots, i, i+1)
	return true
}

// Clone returns a deep copy.
func (c *ContainerInfo) Clone() *ContainerInfo {
	if c == nil {
		return nil
	}
	out := *c
	out.Snapshots = slices.Clone(c.Snapshots)
	return &out
}

// OpenFlag selects the access mode of a container handle.
type OpenFlag uint32

const (
	OpenReadOnly OpenFlag = 1 << iota
	OpenReadWrite
)

func (f OpenFlag) Writable() bool { return f&OpenReadWrite != 0 }

func (f OpenFlag) String() string {
	var parts []string
	if f&OpenReadOnly != 0 {
		parts = append(parts, "read-only")
	}
	if f&OpenReadWrite != 0 {
		parts = append(parts, "read-write")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Handle is an open reference to a container.
type Handle struct {
	ID          uuid.UUID `json:"id"`
	ContainerID uuid.UUID `json:"container_id"`
	Flags       OpenFlag  `json:"flags"`
	OpenedAt    int64     `json:"opened_at"`
}
