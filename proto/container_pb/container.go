// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package container_pb holds the wire messages and gRPC bindings of the
// container property service. Messages travel as JSON (see Codec).
package container_pb

// PropertyEntry is one property slot. Queries send slots with zero values
// and receive them filled in place; Type is echoed unchanged.
type PropertyEntry struct {
	Type uint32 `json:"type"`
	Val  uint64 `json:"val,omitempty"`
	Str  string `json:"str,omitempty"`
}

// ContainerInfo is the non-property metadata of a container.
type ContainerInfo struct {
	Uuid           string   `json:"uuid"`
	PoolUuid       string   `json:"pool_uuid"`
	CreatedAt      int64    `json:"created_at"`
	ModifiedAt     int64    `json:"modified_at,omitempty"`
	OpenedAt       int64    `json:"opened_at,omitempty"`
	ClosedAt       int64    `json:"closed_at,omitempty"`
	Snapshots      []uint64 `json:"snapshots,omitempty"`
	LatestSnapshot uint64   `json:"latest_snapshot,omitempty"`
	NumHandles     int32    `json:"num_handles"`
}

type CreateContainerRequest struct {
	PoolId string `json:"pool_id"`
	// ContainerId is optional; the server generates one when empty.
	ContainerId      string           `json:"container_id,omitempty"`
	ContainerType    string           `json:"container_type"`
	Label            string           `json:"label,omitempty"`
	ChecksumEnabled  bool             `json:"checksum_enabled,omitempty"`
	ChecksumType     uint32           `json:"checksum_type,omitempty"`
	ServerVerify     bool             `json:"server_verify,omitempty"`
	ChunkSize        uint64           `json:"chunk_size,omitempty"`
	RedundancyFactor uint32           `json:"redundancy_factor,omitempty"`
	SnapshotMax      uint64           `json:"snapshot_max,omitempty"`
	Entries          []*PropertyEntry `json:"entries,omitempty"`
}

type CreateContainerResponse struct {
	Info       *ContainerInfo   `json:"info"`
	Properties []*PropertyEntry `json:"properties"`
	Version    uint64           `json:"version"`
}

type OpenContainerRequest struct {
	ContainerId string `json:"container_id"`
	Flags       uint32 `json:"flags"`
}

type OpenContainerResponse struct {
	Handle      string `json:"handle"`
	ContainerId string `json:"container_id"`
	Flags       uint32 `json:"flags"`
	OpenedAt    int64  `json:"opened_at"`
}

type CloseContainerRequest struct {
	Handle string `json:"handle"`
}

type CloseContainerResponse struct{}

type QueryContainerRequest struct {
	Handle     string           `json:"handle"`
	Properties []*PropertyEntry `json:"properties,omitempty"`
}

type QueryContainerResponse struct {
	Info       *ContainerInfo   `json:"info"`
	Properties []*PropertyEntry `json:"properties"`
	Version    uint64           `json:"version"`
}

type SetPropertiesRequest struct {
	Handle          string           `json:"handle"`
	Properties      []*PropertyEntry `json:"properties"`
	ExpectedVersion uint64           `json:"expected_version,omitempty"`
}

type SetPropertiesResponse struct {
	Version uint64 `json:"version"`
}

type CreateSnapshotRequest struct {
	Handle string `json:"handle"`
	Epoch  uint64 `json:"epoch,omitempty"`
}

type CreateSnapshotResponse struct {
	Epoch uint64 `json:"epoch"`
}

type DestroySnapshotRequest struct {
	Handle string `json:"handle"`
	Epoch  uint64 `json:"epoch"`
}

type DestroySnapshotResponse struct{}

type DestroyContainerRequest struct {
	ContainerId string `json:"container_id"`
	Force       bool   `json:"force,omitempty"`
}

type DestroyContainerResponse struct{}

type ListContainersRequest struct {
	PoolId            string `json:"pool_id,omitempty"`
	MaxContainers     int32  `json:"max_containers,omitempty"`
	ContinuationToken string `json:"continuation_token,omitempty"`
}

type ListContainersResponse struct {
	Containers            []*ContainerInfo `json:"containers"`
	NextContinuationToken string           `json:"next_continuation_token,omitempty"`
	IsTruncated           bool             `json:"is_truncated,omitempty"`
}
