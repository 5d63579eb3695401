// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"net"
	"testing"

	"github.com/LeeDigitalWorks/zapprops/pkg/cache"
	zctx "github.com/LeeDigitalWorks/zapprops/pkg/context"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db/memory"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/filter"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/service/container"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"
	"github.com/LeeDigitalWorks/zapprops/proto/container_pb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// startServer serves a memory-backed container service over bufconn and
// returns a raw wire client.
func startServer(t *testing.T, rl *filter.RateLimiter) container_pb.ContainerServiceClient {
	t.Helper()

	handles := cache.NewHandleTable(cache.HandleTableConfig{})
	t.Cleanup(handles.Stop)
	svc, err := container.NewService(container.Config{DB: memory.New(), Handles: handles})
	require.NoError(t, err)

	srv, err := NewContainerServer(ServerConfig{Service: svc, RateLimiter: rl})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	gs := srv.NewGRPCServer()
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return container_pb.NewContainerServiceClient(conn)
}

func TestNewContainerServer(t *testing.T) {
	t.Parallel()
	_, err := NewContainerServer(ServerConfig{})
	assert.EqualError(t, err, "Service is required")
}

func TestChecksumScenarioOverGRPC(t *testing.T) {
	t.Parallel()
	client := startServer(t, nil)
	ctx := context.Background()

	created, err := client.CreateContainer(ctx, &container_pb.CreateContainerRequest{
		PoolId:          uuid.NewString(),
		ContainerType:   "POSIX",
		ChecksumEnabled: true,
		ServerVerify:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.Version)

	opened, err := client.OpenContainer(ctx, &container_pb.OpenContainerRequest{
		ContainerId: created.Info.Uuid,
		Flags:       uint32(types.OpenReadOnly),
	})
	require.NoError(t, err)

	slots := []*container_pb.PropertyEntry{
		{Type: uint32(property.IDLayoutType)},
		{Type: uint32(property.IDChecksum)},
		{Type: uint32(property.IDChecksumServerVerify)},
		{Type: uint32(property.IDChecksumChunkSize)},
	}
	resp, err := client.QueryContainer(ctx, &container_pb.QueryContainerRequest{
		Handle:     opened.Handle,
		Properties: slots,
	})
	require.NoError(t, err)
	require.Len(t, resp.Properties, 4)

	got := make([]uint64, len(resp.Properties))
	for i, e := range resp.Properties {
		assert.Equal(t, slots[i].Type, e.Type, "slot %d keeps its type", i)
		got[i] = e.Val
	}
	assert.Equal(t, []uint64{uint64(property.LayoutPOSIX), 1, 1, 16384}, got)
	assert.Equal(t, created.Info.Uuid, resp.Info.Uuid)
	assert.Equal(t, int32(1), resp.Info.NumHandles)
}

func TestQueryAllProperties(t *testing.T) {
	t.Parallel()
	client := startServer(t, nil)
	ctx := context.Background()

	created, err := client.CreateContainer(ctx, &container_pb.CreateContainerRequest{
		PoolId:        uuid.NewString(),
		ContainerType: "HDF5",
		Label:         "run-42",
	})
	require.NoError(t, err)
	opened, err := client.OpenContainer(ctx, &container_pb.OpenContainerRequest{
		ContainerId: created.Info.Uuid,
		Flags:       uint32(types.OpenReadWrite),
	})
	require.NoError(t, err)

	resp, err := client.QueryContainer(ctx, &container_pb.QueryContainerRequest{Handle: opened.Handle})
	require.NoError(t, err)
	require.Len(t, resp.Properties, len(property.IDs()))

	props, err := container_pb.ToSet(resp.Properties)
	require.NoError(t, err)
	label, ok := props.Get(property.IDLabel)
	require.True(t, ok)
	assert.Equal(t, "run-42", label.Str())
}

func TestErrorsOverGRPC(t *testing.T) {
	t.Parallel()
	client := startServer(t, nil)
	ctx := context.Background()

	created, err := client.CreateContainer(ctx, &container_pb.CreateContainerRequest{
		PoolId:        uuid.NewString(),
		ContainerType: "POSIX",
	})
	require.NoError(t, err)
	ro, err := client.OpenContainer(ctx, &container_pb.OpenContainerRequest{
		ContainerId: created.Info.Uuid,
		Flags:       uint32(types.OpenReadOnly),
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		call     func(opts ...grpc.CallOption) error
		wantCode codes.Code
		wantName string
	}{
		{
			name: "unknown container type",
			call: func(opts ...grpc.CallOption) error {
				_, err := client.CreateContainer(ctx, &container_pb.CreateContainerRequest{
					PoolId: uuid.NewString(), ContainerType: "NOPE",
				}, opts...)
				return err
			},
			wantCode: codes.InvalidArgument,
			wantName: "UnsupportedType",
		},
		{
			name: "missing pool id",
			call: func(opts ...grpc.CallOption) error {
				_, err := client.CreateContainer(ctx, &container_pb.CreateContainerRequest{ContainerType: "POSIX"}, opts...)
				return err
			},
			wantCode: codes.InvalidArgument,
			wantName: "InvalidArgument",
		},
		{
			name: "unknown container",
			call: func(opts ...grpc.CallOption) error {
				_, err := client.OpenContainer(ctx, &container_pb.OpenContainerRequest{
					ContainerId: uuid.NewString(), Flags: uint32(types.OpenReadOnly),
				}, opts...)
				return err
			},
			wantCode: codes.NotFound,
			wantName: "NotFound",
		},
		{
			name: "unknown property id",
			call: func(opts ...grpc.CallOption) error {
				_, err := client.QueryContainer(ctx, &container_pb.QueryContainerRequest{
					Handle:     ro.Handle,
					Properties: []*container_pb.PropertyEntry{{Type: 0xdead}},
				}, opts...)
				return err
			},
			wantCode: codes.InvalidArgument,
			wantName: "UnknownProperty",
		},
		{
			name: "repeated property id",
			call: func(opts ...grpc.CallOption) error {
				_, err := client.QueryContainer(ctx, &container_pb.QueryContainerRequest{
					Handle: ro.Handle,
					Properties: []*container_pb.PropertyEntry{
						{Type: uint32(property.IDChecksum)},
						{Type: uint32(property.IDChecksum)},
					},
				}, opts...)
				return err
			},
			wantCode: codes.InvalidArgument,
			wantName: "InvalidProperty",
		},
		{
			name: "write through read-only handle",
			call: func(opts ...grpc.CallOption) error {
				_, err := client.SetProperties(ctx, &container_pb.SetPropertiesRequest{
					Handle:     ro.Handle,
					Properties: []*container_pb.PropertyEntry{{Type: uint32(property.IDLabel), Str: "x"}},
				}, opts...)
				return err
			},
			wantCode: codes.PermissionDenied,
			wantName: "AccessDenied",
		},
		{
			name: "destroy with open handle",
			call: func(opts ...grpc.CallOption) error {
				_, err := client.DestroyContainer(ctx, &container_pb.DestroyContainerRequest{
					ContainerId: created.Info.Uuid,
				}, opts...)
				return err
			},
			wantCode: codes.FailedPrecondition,
			wantName: "Busy",
		},
		{
			name: "bad continuation token",
			call: func(opts ...grpc.CallOption) error {
				_, err := client.ListContainers(ctx, &container_pb.ListContainersRequest{ContinuationToken: "garbage"}, opts...)
				return err
			},
			wantCode: codes.InvalidArgument,
			wantName: "InvalidArgument",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var trailer metadata.MD
			err := tt.call(grpc.Trailer(&trailer))
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, status.Code(err))
			assert.Equal(t, []string{tt.wantName}, trailer.Get(zctx.ErrorCodeKey))
			assert.NotEmpty(t, trailer.Get(zctx.RequestKey))
		})
	}
}

func TestListAndDestroyOverGRPC(t *testing.T) {
	t.Parallel()
	client := startServer(t, nil)
	ctx := context.Background()
	pool := uuid.NewString()

	for i := 0; i < 3; i++ {
		_, err := client.CreateContainer(ctx, &container_pb.CreateContainerRequest{PoolId: pool, ContainerType: "POSIX"})
		require.NoError(t, err)
	}

	page, err := client.ListContainers(ctx, &container_pb.ListContainersRequest{PoolId: pool, MaxContainers: 2})
	require.NoError(t, err)
	assert.Len(t, page.Containers, 2)
	assert.True(t, page.IsTruncated)

	rest, err := client.ListContainers(ctx, &container_pb.ListContainersRequest{
		PoolId:            pool,
		ContinuationToken: page.NextContinuationToken,
	})
	require.NoError(t, err)
	require.Len(t, rest.Containers, 1)
	assert.False(t, rest.IsTruncated)

	_, err = client.DestroyContainer(ctx, &container_pb.DestroyContainerRequest{ContainerId: rest.Containers[0].Uuid})
	require.NoError(t, err)
	_, err = client.OpenContainer(ctx, &container_pb.OpenContainerRequest{
		ContainerId: rest.Containers[0].Uuid,
		Flags:       uint32(types.OpenReadOnly),
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestRateLimitedServer(t *testing.T) {
	t.Parallel()
	rl := filter.NewRateLimiter(filter.RateLimitConfig{GlobalWriteRPS: 1, BurstMultiplier: 1}, nil)
	client := startServer(t, rl)
	ctx := context.Background()

	_, err := client.CreateContainer(ctx, &container_pb.CreateContainerRequest{PoolId: uuid.NewString(), ContainerType: "POSIX"})
	require.NoError(t, err)

	_, err = client.CreateContainer(ctx, &container_pb.CreateContainerRequest{PoolId: uuid.NewString(), ContainerType: "POSIX"})
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// Reads are budgeted separately.
	_, err = client.ListContainers(ctx, &container_pb.ListContainersRequest{})
	assert.NoError(t, err)
}
