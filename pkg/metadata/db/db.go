// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package db defines the container property store and its backends.
package db

import (
	"context"
	"fmt"

	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrContainerNotFound = fmt.Errorf("container not found")
	ErrContainerExists   = fmt.Errorf("container already exists")
	ErrVersionConflict   = fmt.Errorf("property version conflict")
	ErrSnapshotNotFound  = fmt.Errorf("snapshot not found")
	ErrSnapshotExists    = fmt.Errorf("snapshot already exists")
	ErrSnapshotLimit     = fmt.Errorf("snapshot limit reached")
	ErrNotLeader         = fmt.Errorf("not the raft leader")
)

// Driver identifies a database driver type
type Driver string

const (
	DriverMemory    Driver = "memory"
	DriverSQLite    Driver = "sqlite"
	DriverVitess    Driver = "vitess"
	DriverMySQL     Driver = "mysql"
	DriverPostgres  Driver = "postgres"
	DriverCockroach Driver = "cockroachdb"
	DriverBolt      Driver = "bolt"
	DriverRedis     Driver = "redis"
	DriverRaft      Driver = "raft"
)

// Connection pool defaults shared by the SQL drivers
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 300 // seconds
	DefaultConnMaxIdleTime = 60  // seconds
)

// InitialVersion is the property version assigned at create.
const InitialVersion uint64 = 1

// DB is the main database interface for the container property service
type DB interface {
	ContainerStore

	// Migrate brings the backing schema up to date
	Migrate(ctx context.Context) error

	// Close releases backend resources
	Close() error
}

// ContainerStore holds container metadata and versioned property records.
// Every method is atomic; reads never observe a partially applied write.
type ContainerStore interface {
	// CreateContainer stores info together with the fully resolved property
	// set at InitialVersion. Returns ErrContainerExists if the id is taken.
	CreateContainer(ctx context.Context, info *types.ContainerInfo, props property.Set) error

	// GetContainer returns a copy of the container's core metadata.
	GetContainer(ctx context.Context, id uuid.UUID) (*types.ContainerInfo, error)

	// GetProperties returns the stored values of ids in the order requested
	// and the version they were read at.
	GetProperties(ctx context.Context, id uuid.UUID, ids []property.ID) (property.Set, uint64, error)

	// PutProperties replaces the values of the supplied ids and returns the
	// new version. A non-zero expectedVersion must match the current
	// version or ErrVersionConflict is returned.
	PutProperties(ctx context.Context, id uuid.UUID, props property.Set, expectedVersion uint64) (uint64, error)

	// DestroyContainer removes the container and its property record.
	DestroyContainer(ctx context.Context, id uuid.UUID) error

	// ListContainers lists containers ordered by id.
	ListContainers(ctx context.Context, params *ListContainersParams) (*ListContainersResult, error)

	// AddSnapshot records a snapshot epoch. A non-zero limit caps the number
	// of snapshots; reaching it returns ErrSnapshotLimit.
	AddSnapshot(ctx context.Context, id uuid.UUID, epoch uint64, limit uint64) error

	// DeleteSnapshot removes a snapshot epoch.
	DeleteSnapshot(ctx context.Context, id uuid.UUID, epoch uint64) error
}

// Pinger is implemented by backends that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks d if it implements Pinger and succeeds otherwise.
func Ping(ctx context.Context, d DB) error {
	if p, ok := d.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ListContainersParams contains parameters for listing containers
type ListContainersParams struct {
	// PoolID restricts the listing to one pool; uuid.Nil lists every pool.
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

// DefaultMaxContainers bounds a listing page when the caller sets no limit.
const DefaultMaxContainers = 1000

// PageSize returns the effective page size for p.
func (p *ListContainersParams) PageSize() int {
	if p == nil || p.MaxContainers <= 0 || p.MaxContainers > DefaultMaxContainers {
		return DefaultMaxContainers
	}
	return p.MaxContainers
}

// ParseContinuationToken decodes the container id a listing resumes after.
func ParseContinuationToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid continuation token %q: %w", token, err)
	}
	return id, nil
}

// CheckCreate validates the arguments of CreateContainer. Backends call it
// before touching storage.
func CheckCreate(info *types.ContainerInfo, props property.Set) error {
	if info == nil || info.ID == uuid.Nil {
		return fmt.Errorf("%w: container id is required", property.ErrInvalidProperty)
	}
	return property.CheckEntries(props)
}

// CheckPut validates the arguments of PutProperties.
func CheckPut(props property.Set) error {
	if len(props) == 0 {
		return fmt.Errorf("%w: empty property set", property.ErrInvalidProperty)
	}
	return property.CheckEntries(props)
}

// RequestedIDs validates the ids of a GetProperties call. An empty list
// selects every property in schema order.
func RequestedIDs(ids []property.ID) ([]property.ID, error) {
	if len(ids) == 0 {
		return property.IDs(), nil
	}
	if err := property.CheckIDs(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Record is the complete stored state of one container, used by backends
// that persist a container as a single value.
type Record struct {
	Info    *types.ContainerInfo `json:"info"`
	Props   property.Set         `json:"props"`
	Version uint64               `json:"version"`
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	return &Record{Info: r.Info.Clone(), Props: r.Props.Clone(), Version: r.Version}
}

// NewRecord builds the initial record of a container. Service-filled
// fields of info are cleared.
func NewRecord(info *types.ContainerInfo, props property.Set) *Record {
	stored := info.Clone()
	stored.Snapshots = nil
	stored.NumHandles = 0
	stored.OpenedAt = 0
	stored.ClosedAt = 0
	return &Record{Info: stored, Props: props.Clone(), Version: InitialVersion}
}

// Put returns the record that results from writing props at time now.
// A non-zero expectedVersion must match r.Version.
func (r *Record) Put(props property.Set, expectedVersion uint64, now int64) (*Record, error) {
	if expectedVersion != 0 && expectedVersion != r.Version {
		return nil, ErrVersionConflict
	}
	next := &Record{
		Info:    r.Info.Clone(),
		Props:   r.Props.Merge(props),
		Version: r.Version + 1,
	}
	next.Info.ModifiedAt = now
	return next, nil
}

// AddSnapshot returns the record with epoch added to its snapshot list.
func (r *Record) AddSnapshot(epoch, limit uint64, now int64) (*Record, error) {
	if r.Info.HasSnapshot(epoch) {
		return nil, ErrSnapshotExists
	}
	if limit != 0 && uint64(len(r.Info.Snapshots)) >= limit {
		return nil, ErrSnapshotLimit
	}
	next := r.Clone()
	next.Info.AddSnapshot(epoch)
	next.Info.ModifiedAt = now
	return next, nil
}

// DeleteSnapshot returns the record with epoch removed.
func (r *Record) DeleteSnapshot(epoch uint64, now int64) (*Record, error) {
	if !r.Info.HasSnapshot(epoch) {
		return nil, ErrSnapshotNotFound
	}
	next := r.Clone()
	next.Info.RemoveSnapshot(epoch)
	next.Info.ModifiedAt = now
	return next, nil
}
