// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package client provides a container service client that spreads calls
// over a cluster of property servers.
package client

import (
	"context"
	"errors"
	"time"

	zctx "github.com/LeeDigitalWorks/zapprops/pkg/context"
	"github.com/LeeDigitalWorks/zapprops/pkg/grpc/pool"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/service/container"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"
	"github.com/LeeDigitalWorks/zapprops/proto"
	"github.com/LeeDigitalWorks/zapprops/proto/container_pb"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Verify ContainerClientPool implements the container service
var _ container.Service = (*ContainerClientPool)(nil)

// ContainerClientPool talks to container servers with automatic failover
// and retry. Failed calls come back as *container.Error with the code the
// server assigned, so callers handle remote and local errors alike.
type ContainerClientPool struct {
	cluster *pool.ClusterPool[container_pb.ContainerServiceClient]
	opts    pool.ClusterOptions
}

// ContainerClientPoolConfig holds configuration for ContainerClientPool
type ContainerClientPoolConfig struct {
	// SeedAddrs are the container server addresses
	SeedAddrs []string

	// DialTimeout for gRPC connections (default: 5s)
	DialTimeout time.Duration

	// RequestTimeout for individual attempts (default: 10s)
	RequestTimeout time.Duration

	// MaxRetries for failed requests (default: 3)
	MaxRetries int

	// InitialBackoff is the initial backoff duration (default: 100ms)
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration (default: 5s)
	MaxBackoff time.Duration

	// DialOpts are appended to the default dial options
	DialOpts []grpc.DialOption
}

// NewContainerClientPool creates a new container client pool
func NewContainerClientPool(cfg ContainerClientPoolConfig) (*ContainerClientPool, error) {
	if len(cfg.SeedAddrs) == 0 {
		return nil, errors.New("at least one server address is required")
	}

	opts := pool.DefaultClusterOptions(cfg.SeedAddrs)
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.RequestTimeout > 0 {
		opts.RequestTimeout = cfg.RequestTimeout
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.InitialBackoff > 0 {
		opts.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		opts.MaxBackoff = cfg.MaxBackoff
	}
	opts.DialOpts = append(opts.DialOpts,
		grpc.WithChainUnaryInterceptor(proto.RequestIDUnaryClientInterceptor()),
	)
	opts.DialOpts = append(opts.DialOpts, cfg.DialOpts...)

	return &ContainerClientPool{
		cluster: pool.NewClusterPool(containerClientFactory, opts),
		opts:    opts,
	}, nil
}

// containerClientFactory creates a container service client from a connection
func containerClientFactory(cc grpc.ClientConnInterface) container_pb.ContainerServiceClient {
	return container_pb.NewContainerServiceClient(cc)
}

// Close closes all connections in the pool
func (p *ContainerClientPool) Close() error {
	return p.cluster.Close()
}

// UpdateNodes replaces the list of known container servers.
func (p *ContainerClientPool) UpdateNodes(addrs []string) {
	p.cluster.UpdateNodes(addrs)
}

// call runs fn on some server. Mutating calls opt out of the transport
// retry so a request is never replayed on the same connection; the
// cluster retry still fails them over when a server is unavailable.
func (p *ContainerClientPool) call(ctx context.Context, mutating bool,
	fn func(ctx context.Context, client container_pb.ContainerServiceClient, opts ...grpc.CallOption) error) error {
	var codeName string
	err := p.cluster.ExecuteOnAny(ctx, func(client container_pb.ContainerServiceClient) error {
		reqCtx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
		defer cancel()

		var trailer metadata.MD
		opts := []grpc.CallOption{grpc.Trailer(&trailer)}
		if mutating {
			opts = append(opts, retry.Disable())
		}
		err := fn(reqCtx, client, opts...)
		codeName = ""
		if v := trailer.Get(zctx.ErrorCodeKey); len(v) > 0 {
			codeName = v[0]
		}
		return err
	})
	return toServiceError(err, codeName)
}

// toServiceError maps a call failure to *container.Error.
func toServiceError(err error, codeName string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pool.ErrRetriesExhausted) {
		return &container.Error{Code: container.ErrCodeTransportFailure, Err: err}
	}
	if st, ok := status.FromError(err); ok {
		return container.FromGRPCStatus(st, codeName)
	}
	return container.FromError(err)
}

func (p *ContainerClientPool) CreateContainer(ctx context.Context, req *container.CreateContainerRequest) (*container.CreateContainerResult, error) {
	if req == nil {
		return nil, container.NewInvalidArgumentError("request is required")
	}
	opts := req.Options
	in := &container_pb.CreateContainerRequest{
		PoolId:           req.PoolID.String(),
		ContainerId:      container_pb.FormatUUID(req.ContainerID),
		ContainerType:    opts.Type,
		Label:            opts.Label,
		ChecksumEnabled:  opts.ChecksumEnabled,
		ChecksumType:     uint32(opts.ChecksumType),
		ServerVerify:     opts.ServerVerify,
		ChunkSize:        opts.ChunkSize,
		RedundancyFactor: opts.RedundancyFactor,
		SnapshotMax:      opts.SnapshotMax,
		Entries:          container_pb.FromSet(opts.Entries),
	}

	var resp *container_pb.CreateContainerResponse
	err := p.call(ctx, true, func(ctx context.Context, c container_pb.ContainerServiceClient, callOpts ...grpc.CallOption) error {
		var err error
		resp, err = c.CreateContainer(ctx, in, callOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	info, props, err := decodeResult(resp.Info, resp.Properties)
	if err != nil {
		return nil, err
	}
	return &container.CreateContainerResult{Info: info, Properties: props, Version: resp.Version}, nil
}

func (p *ContainerClientPool) OpenContainer(ctx context.Context, id uuid.UUID, flags types.OpenFlag) (types.Handle, error) {
	var resp *container_pb.OpenContainerResponse
	err := p.call(ctx, false, func(ctx context.Context, c container_pb.ContainerServiceClient, callOpts ...grpc.CallOption) error {
		var err error
		resp, err = c.OpenContainer(ctx, &container_pb.OpenContainerRequest{
			ContainerId: id.String(),
			Flags:       uint32(flags),
		}, callOpts...)
		return err
	})
	if err != nil {
		return types.Handle{}, err
	}

	handle, err := uuid.Parse(resp.Handle)
	if err != nil {
		return types.Handle{}, malformed("handle", err)
	}
	cid, err := uuid.Parse(resp.ContainerId)
	if err != nil {
		return types.Handle{}, malformed("container id", err)
	}
	return types.Handle{
		ID:          handle,
		ContainerID: cid,
		Flags:       types.OpenFlag(resp.Flags),
		OpenedAt:    resp.OpenedAt,
	}, nil
}

func (p *ContainerClientPool) CloseContainer(ctx context.Context, handle uuid.UUID) error {
	return p.call(ctx, true, func(ctx context.Context, c container_pb.ContainerServiceClient, callOpts ...grpc.CallOption) error {
		_, err := c.CloseContainer(ctx, &container_pb.CloseContainerRequest{Handle: handle.String()}, callOpts...)
		return err
	})
}

// QueryContainer sends one slot per id and decodes the filled slots. An
// empty ids list asks for every property.
func (p *ContainerClientPool) QueryContainer(ctx context.Context, handle uuid.UUID, ids []property.ID) (*container.QueryContainerResult, error) {
	slots := make([]*container_pb.PropertyEntry, len(ids))
	for i, id := range ids {
		slots[i] = &container_pb.PropertyEntry{Type: uint32(id)}
	}

	var resp *container_pb.QueryContainerResponse
	err := p.call(ctx, false, func(ctx context.Context, c container_pb.ContainerServiceClient, callOpts ...grpc.CallOption) error {
		var err error
		resp, err = c.QueryContainer(ctx, &container_pb.QueryContainerRequest{
			Handle:     handle.String(),
			Properties: slots,
		}, callOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 && len(resp.Properties) != len(ids) {
		return nil, &container.Error{Code: container.ErrCodeInternalError, Message: "server returned a partial property set"}
	}

	info, props, err := decodeResult(resp.Info, resp.Properties)
	if err != nil {
		return nil, err
	}
	return &container.QueryContainerResult{Info: info, Properties: props, Version: resp.Version}, nil
}

func (p *ContainerClientPool) SetProperties(ctx context.Context, req *container.SetPropertiesRequest) (uint64, error) {
	if req == nil {
		return 0, container.NewInvalidArgumentError("request is required")
	}
	var resp *container_pb.SetPropertiesResponse
	err := p.call(ctx, true, func(ctx context.Context, c container_pb.ContainerServiceClient, callOpts ...grpc.CallOption) error {
		var err error
		resp, err = c.SetProperties(ctx, &container_pb.SetPropertiesRequest{
			Handle:          req.Handle.String(),
			Properties:      container_pb.FromSet(req.Properties),
			ExpectedVersion: req.ExpectedVersion,
		}, callOpts...)
		return err
	})
	if err != nil {
		return 0, err
	}
	return resp.Version, nil
}

func (p *ContainerClientPool) CreateSnapshot(ctx context.Context, handle uuid.UUID, epoch uint64) (uint64, error) {
	var resp *container_pb.CreateSnapshotResponse
	err := p.call(ctx, true, func(ctx context.Context, c container_pb.ContainerServiceClient, callOpts ...grpc.CallOption) error {
		var err error
		resp, err = c.CreateSnapshot(ctx, &container_pb.CreateSnapshotRequest{Handle: handle.String(), Epoch: epoch}, callOpts...)
		return err
	})
	if err != nil {
		return 0, err
	}
	return resp.Epoch, nil
}

func (p *ContainerClientPool) DestroySnapshot(ctx context.Context, handle uuid.UUID, epoch uint64) error {
	return p.call(ctx, true, func(ctx context.Context, c container_pb.ContainerServiceClient, callOpts ...grpc.CallOption) error {
		_, err := c.DestroySnapshot(ctx, &container_pb.DestroySnapshotRequest{Handle: handle.String(), Epoch: epoch}, callOpts...)
		return err
	})
}

func (p *ContainerClientPool) DestroyContainer(ctx context.Context, id uuid.UUID, force bool) error {
	return p.call(ctx, true, func(ctx context.Context, c container_pb.ContainerServiceClient, callOpts ...grpc.CallOption) error {
		_, err := c.DestroyContainer(ctx, &container_pb.DestroyContainerRequest{ContainerId: id.String(), Force: force}, callOpts...)
		return err
	})
}

func (p *ContainerClientPool) ListContainers(ctx context.Context, req *container.ListContainersRequest) (*container.ListContainersResult, error) {
	if req == nil {
		req = &container.ListContainersRequest{}
	}
	var resp *container_pb.ListContainersResponse
	err := p.call(ctx, false, func(ctx context.Context, c container_pb.ContainerServiceClient, callOpts ...grpc.CallOption) error {
		var err error
		resp, err = c.ListContainers(ctx, &container_pb.ListContainersRequest{
			PoolId:            container_pb.FormatUUID(req.PoolID),
			MaxContainers:     int32(req.MaxContainers),
			ContinuationToken: req.ContinuationToken,
		}, callOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := &container.ListContainersResult{
		Containers:            make([]*types.ContainerInfo, 0, len(resp.Containers)),
		NextContinuationToken: resp.NextContinuationToken,
		IsTruncated:           resp.IsTruncated,
	}
	for _, c := range resp.Containers {
		info, err := c.ToContainerInfo()
		if err != nil {
			return nil, malformed("container info", err)
		}
		out.Containers = append(out.Containers, info)
	}
	return out, nil
}

func decodeResult(pbInfo *container_pb.ContainerInfo, entries []*container_pb.PropertyEntry) (*types.ContainerInfo, property.Set, error) {
	info, err := pbInfo.ToContainerInfo()
	if err != nil {
		return nil, nil, malformed("container info", err)
	}
	props, err := container_pb.ToSet(entries)
	if err != nil {
		return nil, nil, malformed("properties", err)
	}
	return info, props, nil
}

func malformed(what string, err error) error {
	return &container.Error{Code: container.ErrCodeInternalError, Message: "malformed " + what + " in response", Err: err}
}
