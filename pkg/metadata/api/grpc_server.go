// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"

	zctx "github.com/LeeDigitalWorks/zapprops/pkg/context"
	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/service/container"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"
	"github.com/LeeDigitalWorks/zapprops/proto/container_pb"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func (s *ContainerServer) CreateContainer(ctx context.Context, req *container_pb.CreateContainerRequest) (*container_pb.CreateContainerResponse, error) {
	poolID, err := parseID("pool id", req.PoolId)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	containerID, err := container_pb.ParseUUID(req.ContainerId)
	if err != nil {
		return nil, toStatus(ctx, container.NewInvalidArgumentError("invalid container id"))
	}
	entries, err := container_pb.ToSet(req.Entries)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	res, err := s.svc.CreateContainer(ctx, &container.CreateContainerRequest{
		PoolID:      poolID,
		ContainerID: containerID,
		Options: property.CreateOptions{
			Type:             req.ContainerType,
			Label:            req.Label,
			ChecksumEnabled:  req.ChecksumEnabled,
			ChecksumType:     property.ChecksumType(req.ChecksumType),
			ServerVerify:     req.ServerVerify,
			ChunkSize:        req.ChunkSize,
			RedundancyFactor: req.RedundancyFactor,
			SnapshotMax:      req.SnapshotMax,
			Entries:          entries,
		},
	})
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &container_pb.CreateContainerResponse{
		Info:       container_pb.FromContainerInfo(res.Info),
		Properties: container_pb.FromSet(res.Properties),
		Version:    res.Version,
	}, nil
}

func (s *ContainerServer) OpenContainer(ctx context.Context, req *container_pb.OpenContainerRequest) (*container_pb.OpenContainerResponse, error) {
	id, err := parseID("container id", req.ContainerId)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	h, err := s.svc.OpenContainer(ctx, id, types.OpenFlag(req.Flags))
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &container_pb.OpenContainerResponse{
		Handle:      h.ID.String(),
		ContainerId: h.ContainerID.String(),
		Flags:       uint32(h.Flags),
		OpenedAt:    h.OpenedAt,
	}, nil
}

func (s *ContainerServer) CloseContainer(ctx context.Context, req *container_pb.CloseContainerRequest) (*container_pb.CloseContainerResponse, error) {
	handle, err := parseID("handle", req.Handle)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := s.svc.CloseContainer(ctx, handle); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &container_pb.CloseContainerResponse{}, nil
}

// QueryContainer fills the requested slots in place. An empty slot list
// returns every property in schema order.
func (s *ContainerServer) QueryContainer(ctx context.Context, req *container_pb.QueryContainerRequest) (*container_pb.QueryContainerResponse, error) {
	handle, err := parseID("handle", req.Handle)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	res, err := s.svc.QueryContainer(ctx, handle, container_pb.IDs(req.Properties))
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &container_pb.QueryContainerResponse{
		Info:       container_pb.FromContainerInfo(res.Info),
		Properties: container_pb.Fill(req.Properties, res.Properties),
		Version:    res.Version,
	}, nil
}

func (s *ContainerServer) SetProperties(ctx context.Context, req *container_pb.SetPropertiesRequest) (*container_pb.SetPropertiesResponse, error) {
	handle, err := parseID("handle", req.Handle)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	props, err := container_pb.ToSet(req.Properties)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	version, err := s.svc.SetProperties(ctx, &container.SetPropertiesRequest{
		Handle:          handle,
		Properties:      props,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &container_pb.SetPropertiesResponse{Version: version}, nil
}

func (s *ContainerServer) CreateSnapshot(ctx context.Context, req *container_pb.CreateSnapshotRequest) (*container_pb.CreateSnapshotResponse, error) {
	handle, err := parseID("handle", req.Handle)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	epoch, err := s.svc.CreateSnapshot(ctx, handle, req.Epoch)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &container_pb.CreateSnapshotResponse{Epoch: epoch}, nil
}

func (s *ContainerServer) DestroySnapshot(ctx context.Context, req *container_pb.DestroySnapshotRequest) (*container_pb.DestroySnapshotResponse, error) {
	handle, err := parseID("handle", req.Handle)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := s.svc.DestroySnapshot(ctx, handle, req.Epoch); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &container_pb.DestroySnapshotResponse{}, nil
}

func (s *ContainerServer) DestroyContainer(ctx context.Context, req *container_pb.DestroyContainerRequest) (*container_pb.DestroyContainerResponse, error) {
	id, err := parseID("container id", req.ContainerId)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	if err := s.svc.DestroyContainer(ctx, id, req.Force); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &container_pb.DestroyContainerResponse{}, nil
}

func (s *ContainerServer) ListContainers(ctx context.Context, req *container_pb.ListContainersRequest) (*container_pb.ListContainersResponse, error) {
	poolID, err := container_pb.ParseUUID(req.PoolId)
	if err != nil {
		return nil, toStatus(ctx, container.NewInvalidArgumentError("invalid pool id"))
	}
	res, err := s.svc.ListContainers(ctx, &container.ListContainersRequest{
		PoolID:            poolID,
		MaxContainers:     int(req.MaxContainers),
		ContinuationToken: req.ContinuationToken,
	})
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out := &container_pb.ListContainersResponse{
		Containers:            make([]*container_pb.ContainerInfo, len(res.Containers)),
		NextContinuationToken: res.NextContinuationToken,
		IsTruncated:           res.IsTruncated,
	}
	for i, info := range res.Containers {
		out.Containers[i] = container_pb.FromContainerInfo(info)
	}
	return out, nil
}

// parseID parses a required id field.
func parseID(field, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, container.NewInvalidArgumentError(field + " is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, container.NewInvalidArgumentError("invalid " + field)
	}
	return id, nil
}

// toStatus converts err to a gRPC status error. The exact service code
// travels in the trailer so clients can restore it.
func toStatus(ctx context.Context, err error) error {
	e := container.FromError(err)
	_ = grpc.SetTrailer(ctx, metadata.Pairs(zctx.ErrorCodeKey, e.Code.String()))

	if e.Code == container.ErrCodeInternalError {
		logger.Ctx(ctx).Error().Err(err).Msg("container request failed")
	} else {
		logger.Ctx(ctx).Debug().Err(err).Stringer("code", e.Code).Msg("container request rejected")
	}
	return e.ToGRPCStatus().Err()
}

var _ container_pb.ContainerServiceServer = (*ContainerServer)(nil)
