// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/cache"
	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
)

// Config holds configuration for the container service
type Config struct {
	DB      db.DB
	Handles *cache.HandleTable

	// Now returns the current time in Unix nanoseconds. It stamps creation
	// times and zero snapshot epochs. Defaults to time.Now.
	Now func() int64
}

// serviceImpl implements the Service interface
type serviceImpl struct {
	db      db.DB
	handles *cache.HandleTable
	now     func() int64
}

// NewService creates a new container service
func NewService(cfg Config) (Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("DB is required")
	}
	if cfg.Handles == nil {
		return nil, errors.New("Handles is required")
	}
	now := cfg.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixNano() }
	}

	return &serviceImpl{
		db:      cfg.DB,
		handles: cfg.Handles,
		now:     now,
	}, nil
}

func (s *serviceImpl) CreateContainer(ctx context.Context, req *CreateContainerRequest) (*CreateContainerResult, error) {
	if req == nil {
		return nil, NewInvalidArgumentError("request is required")
	}
	if req.PoolID == uuid.Nil {
		return nil, NewInvalidArgumentError("pool id is required")
	}

	props, err := property.Resolve(req.Options)
	if err != nil {
		return nil, FromError(err)
	}

	id := req.ContainerID
	if id == uuid.Nil {
		id = uuid.New()
	}
	info := &types.ContainerInfo{
		ID:        id,
		PoolID:    req.PoolID,
		CreatedAt: s.now(),
	}

	if err := s.db.CreateContainer(ctx, info, props); err != nil {
		if !errors.Is(err, db.ErrContainerExists) {
			logger.Ctx(ctx).Error().Err(err).Str("container_id", id.String()).Msg("failed to create container")
		}
		return nil, FromError(err)
	}

	logger.Ctx(ctx).Info().
		Str("container_id", id.String()).
		Str("pool_id", req.PoolID.String()).
		Str("type", req.Options.Type).
		Msg("container created")

	return &CreateContainerResult{
		Info:       s.withHandleState(info.Clone()),
		Properties: property.Present(props),
		Version:    db.InitialVersion,
	}, nil
}

func (s *serviceImpl) OpenContainer(ctx context.Context, id uuid.UUID, flags types.OpenFlag) (types.Handle, error) {
	if flags&(types.OpenReadOnly|types.OpenReadWrite) == 0 {
		return types.Handle{}, NewInvalidArgumentError("open flags must request read-only or read-write access")
	}
	if _, err := s.db.GetContainer(ctx, id); err != nil {
		return types.Handle{}, FromError(err)
	}

	h, err := s.handles.Open(id, flags)
	if err != nil {
		return types.Handle{}, FromError(err)
	}
	logger.Ctx(ctx).Debug().
		Str("container_id", id.String()).
		Str("handle", h.ID.String()).
		Stringer("flags", flags).
		Msg("container opened")
	return h, nil
}

func (s *serviceImpl) CloseContainer(ctx context.Context, handle uuid.UUID) error {
	h, ok := s.handles.Close(handle)
	if !ok {
		return NewNotFoundError("handle")
	}
	logger.Ctx(ctx).Debug().
		Str("container_id", h.ContainerID.String()).
		Str("handle", handle.String()).
		Msg("container closed")
	return nil
}

func (s *serviceImpl) QueryContainer(ctx context.Context, handle uuid.UUID, ids []property.ID) (*QueryContainerResult, error) {
	h, err := s.lookup(handle, false)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		ids = property.IDs()
	} else if err := property.CheckIDs(ids); err != nil {
		return nil, FromError(err)
	}

	// Dependencies are read alongside so masking sees the same version.
	stored, version, err := s.db.GetProperties(ctx, h.ContainerID, property.WithDependencies(ids))
	if err != nil {
		return nil, FromError(err)
	}
	props, err := property.Present(stored).Select(ids)
	if err != nil {
		return nil, FromError(err)
	}

	info, err := s.db.GetContainer(ctx, h.ContainerID)
	if err != nil {
		return nil, FromError(err)
	}

	return &QueryContainerResult{
		Info:       s.withHandleState(info),
		Properties: props,
		Version:    version,
	}, nil
}

func (s *serviceImpl) SetProperties(ctx context.Context, req *SetPropertiesRequest) (uint64, error) {
	if req == nil {
		return 0, NewInvalidArgumentError("request is required")
	}
	h, err := s.lookup(req.Handle, true)
	if err != nil {
		return 0, err
	}

	props, err := property.NormalizeUpdate(req.Properties)
	if err != nil {
		return 0, FromError(err)
	}
	if err := property.CheckEntries(props); err != nil {
		return 0, FromError(err)
	}

	version, err := s.db.PutProperties(ctx, h.ContainerID, props, req.ExpectedVersion)
	if err != nil {
		return 0, FromError(err)
	}

	logger.Ctx(ctx).Info().
		Str("container_id", h.ContainerID.String()).
		Uint64("version", version).
		Int("properties", len(props)).
		Msg("container properties updated")
	return version, nil
}

func (s *serviceImpl) CreateSnapshot(ctx context.Context, handle uuid.UUID, epoch uint64) (uint64, error) {
	h, err := s.lookup(handle, true)
	if err != nil {
		return 0, err
	}
	if epoch == 0 {
		epoch = uint64(s.now())
	}

	limitProps, _, err := s.db.GetProperties(ctx, h.ContainerID, []property.ID{property.IDSnapshotMax})
	if err != nil {
		return 0, FromError(err)
	}
	var limit uint64
	if v, ok := limitProps.Get(property.IDSnapshotMax); ok {
		limit = v.Uint64()
	}

	if err := s.db.AddSnapshot(ctx, h.ContainerID, epoch, limit); err != nil {
		return 0, FromError(err)
	}

	logger.Ctx(ctx).Info().
		Str("container_id", h.ContainerID.String()).
		Uint64("epoch", epoch).
		Msg("snapshot created")
	return epoch, nil
}

func (s *serviceImpl) DestroySnapshot(ctx context.Context, handle uuid.UUID, epoch uint64) error {
	h, err := s.lookup(handle, true)
	if err != nil {
		return err
	}
	if epoch == 0 {
		return NewInvalidArgumentError("snapshot epoch is required")
	}
	if err := s.db.DeleteSnapshot(ctx, h.ContainerID, epoch); err != nil {
		return FromError(err)
	}

	logger.Ctx(ctx).Info().
		Str("container_id", h.ContainerID.String()).
		Uint64("epoch", epoch).
		Msg("snapshot destroyed")
	return nil
}

func (s *serviceImpl) DestroyContainer(ctx context.Context, id uuid.UUID, force bool) error {
	if n := s.handles.Count(id); n > 0 {
		if !force {
			return NewBusyError(fmt.Sprintf("container has %d open handles", n))
		}
		evicted := s.handles.Evict(id)
		logger.Ctx(ctx).Warn().
			Str("container_id", id.String()).
			Int("handles", evicted).
			Msg("evicted open handles for forced destroy")
	}

	if err := s.db.DestroyContainer(ctx, id); err != nil {
		return FromError(err)
	}
	s.handles.Forget(id)

	logger.Ctx(ctx).Info().Str("container_id", id.String()).Bool("force", force).Msg("container destroyed")
	return nil
}

func (s *serviceImpl) ListContainers(ctx context.Context, req *ListContainersRequest) (*ListContainersResult, error) {
	if req == nil {
		req = &ListContainersRequest{}
	}
	if req.MaxContainers < 0 {
		return nil, NewInvalidArgumentError("max containers must not be negative")
	}
	if _, err := db.ParseContinuationToken(req.ContinuationToken); err != nil {
		return nil, NewInvalidArgumentError("invalid continuation token")
	}

	res, err := s.db.ListContainers(ctx, &db.ListContainersParams{
		PoolID:            req.PoolID,
		MaxContainers:     req.MaxContainers,
		ContinuationToken: req.ContinuationToken,
	})
	if err != nil {
		return nil, FromError(err)
	}

	for _, info := range res.Containers {
		s.withHandleState(info)
	}
	return &ListContainersResult{
		Containers:            res.Containers,
		NextContinuationToken: res.NextContinuationToken,
		IsTruncated:           res.IsTruncated,
	}, nil
}

// lookup resolves a live handle, requiring write access when writable is
// set.
func (s *serviceImpl) lookup(handle uuid.UUID, writable bool) (types.Handle, error) {
	h, ok := s.handles.Get(handle)
	if !ok {
		return types.Handle{}, NewNotFoundError("handle")
	}
	if writable && !h.Flags.Writable() {
		return types.Handle{}, NewAccessDeniedError("handle is read-only")
	}
	return h, nil
}

func (s *serviceImpl) withHandleState(info *types.ContainerInfo) *types.ContainerInfo {
	info.NumHandles = s.handles.Count(info.ID)
	a := s.handles.Activity(info.ID)
	info.OpenedAt = a.OpenedAt
	info.ClosedAt = a.ClosedAt
	return info
}

var _ Service = (*serviceImpl)(nil)
