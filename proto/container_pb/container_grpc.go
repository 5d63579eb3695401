// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package container_pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "zapprops.container.ContainerService"

const (
	ContainerService_CreateContainer_FullMethodName  = "/" + ServiceName + "/CreateContainer"
	ContainerService_OpenContainer_FullMethodName    = "/" + ServiceName + "/OpenContainer"
	ContainerService_CloseContainer_FullMethodName   = "/" + ServiceName + "/CloseContainer"
	ContainerService_QueryContainer_FullMethodName   = "/" + ServiceName + "/QueryContainer"
	ContainerService_SetProperties_FullMethodName    = "/" + ServiceName + "/SetProperties"
	ContainerService_CreateSnapshot_FullMethodName   = "/" + ServiceName + "/CreateSnapshot"
	ContainerService_DestroySnapshot_FullMethodName  = "/" + ServiceName + "/DestroySnapshot"
	ContainerService_DestroyContainer_FullMethodName = "/" + ServiceName + "/DestroyContainer"
	ContainerService_ListContainers_FullMethodName   = "/" + ServiceName + "/ListContainers"
)

// ContainerServiceClient is the client API for ContainerService.
type ContainerServiceClient interface {
	CreateContainer(ctx context.Context, in *CreateContainerRequest, opts ...grpc.CallOption) (*CreateContainerResponse, error)
	OpenContainer(ctx context.Context, in *OpenContainerRequest, opts ...grpc.CallOption) (*OpenContainerResponse, error)
	CloseContainer(ctx context.Context, in *CloseContainerRequest, opts ...grpc.CallOption) (*CloseContainerResponse, error)
	QueryContainer(ctx context.Context, in *QueryContainerRequest, opts ...grpc.CallOption) (*QueryContainerResponse, error)
	SetProperties(ctx context.Context, in *SetPropertiesRequest, opts ...grpc.CallOption) (*SetPropertiesResponse, error)
	CreateSnapshot(ctx context.Context, in *CreateSnapshotRequest, opts ...grpc.CallOption) (*CreateSnapshotResponse, error)
	DestroySnapshot(ctx context.Context, in *DestroySnapshotRequest, opts ...grpc.CallOption) (*DestroySnapshotResponse, error)
	DestroyContainer(ctx context.Context, in *DestroyContainerRequest, opts ...grpc.CallOption) (*DestroyContainerResponse, error)
	ListContainers(ctx context.Context, in *ListContainersRequest, opts ...grpc.CallOption) (*ListContainersResponse, error)
}

type containerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewContainerServiceClient returns a client that encodes every call with
// the JSON codec.
func NewContainerServiceClient(cc grpc.ClientConnInterface) ContainerServiceClient {
	return &containerServiceClient{cc}
}

func (c *containerServiceClient) CreateContainer(ctx context.Context, in *CreateContainerRequest, opts ...grpc.CallOption) (*CreateContainerResponse, error) {
	out := new(CreateContainerResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ContainerService_CreateContainer_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *containerServiceClient) OpenContainer(ctx context.Context, in *OpenContainerRequest, opts ...grpc.CallOption) (*OpenContainerResponse, error) {
	out := new(OpenContainerResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ContainerService_OpenContainer_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *containerServiceClient) CloseContainer(ctx context.Context, in *CloseContainerRequest, opts ...grpc.CallOption) (*CloseContainerResponse, error) {
	out := new(CloseContainerResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ContainerService_CloseContainer_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *containerServiceClient) QueryContainer(ctx context.Context, in *QueryContainerRequest, opts ...grpc.CallOption) (*QueryContainerResponse, error) {
	out := new(QueryContainerResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ContainerService_QueryContainer_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *containerServiceClient) SetProperties(ctx context.Context, in *SetPropertiesRequest, opts ...grpc.CallOption) (*SetPropertiesResponse, error) {
	out := new(SetPropertiesResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ContainerService_SetProperties_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *containerServiceClient) CreateSnapshot(ctx context.Context, in *CreateSnapshotRequest, opts ...grpc.CallOption) (*CreateSnapshotResponse, error) {
	out := new(CreateSnapshotResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ContainerService_CreateSnapshot_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *containerServiceClient) DestroySnapshot(ctx context.Context, in *DestroySnapshotRequest, opts ...grpc.CallOption) (*DestroySnapshotResponse, error) {
	out := new(DestroySnapshotResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ContainerService_DestroySnapshot_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *containerServiceClient) DestroyContainer(ctx context.Context, in *DestroyContainerRequest, opts ...grpc.CallOption) (*DestroyContainerResponse, error) {
	out := new(DestroyContainerResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ContainerService_DestroyContainer_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *containerServiceClient) ListContainers(ctx context.Context, in *ListContainersRequest, opts ...grpc.CallOption) (*ListContainersResponse, error) {
	out := new(ListContainersResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, ContainerService_ListContainers_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ContainerServiceServer is the server API for ContainerService.
// Implementations must embed UnimplementedContainerServiceServer.
type ContainerServiceServer interface {
	CreateContainer(context.Context, *CreateContainerRequest) (*CreateContainerResponse, error)
	OpenContainer(context.Context, *OpenContainerRequest) (*OpenContainerResponse, error)
	CloseContainer(context.Context, *CloseContainerRequest) (*CloseContainerResponse, error)
	QueryContainer(context.Context, *QueryContainerRequest) (*QueryContainerResponse, error)
	SetProperties(context.Context, *SetPropertiesRequest) (*SetPropertiesResponse, error)
	CreateSnapshot(context.Context, *CreateSnapshotRequest) (*CreateSnapshotResponse, error)
	DestroySnapshot(context.Context, *DestroySnapshotRequest) (*DestroySnapshotResponse, error)
	DestroyContainer(context.Context, *DestroyContainerRequest) (*DestroyContainerResponse, error)
	ListContainers(context.Context, *ListContainersRequest) (*ListContainersResponse, error)
	mustEmbedUnimplementedContainerServiceServer()
}

// UnimplementedContainerServiceServer returns Unimplemented for every method.
type UnimplementedContainerServiceServer struct{}

func (UnimplementedContainerServiceServer) CreateContainer(context.Context, *CreateContainerRequest) (*CreateContainerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateContainer not implemented")
}

func (UnimplementedContainerServiceServer) OpenContainer(context.Context, *OpenContainerRequest) (*OpenContainerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method OpenContainer not implemented")
}

func (UnimplementedContainerServiceServer) CloseContainer(context.Context, *CloseContainerRequest) (*CloseContainerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CloseContainer not implemented")
}

func (UnimplementedContainerServiceServer) QueryContainer(context.Context, *QueryContainerRequest) (*QueryContainerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method QueryContainer not implemented")
}

func (UnimplementedContainerServiceServer) SetProperties(context.Context, *SetPropertiesRequest) (*SetPropertiesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetProperties not implemented")
}

func (UnimplementedContainerServiceServer) CreateSnapshot(context.Context, *CreateSnapshotRequest) (*CreateSnapshotResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateSnapshot not implemented")
}

func (UnimplementedContainerServiceServer) DestroySnapshot(context.Context, *DestroySnapshotRequest) (*DestroySnapshotResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DestroySnapshot not implemented")
}

func (UnimplementedContainerServiceServer) DestroyContainer(context.Context, *DestroyContainerRequest) (*DestroyContainerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DestroyContainer not implemented")
}

func (UnimplementedContainerServiceServer) ListContainers(context.Context, *ListContainersRequest) (*ListContainersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListContainers not implemented")
}

func (UnimplementedContainerServiceServer) mustEmbedUnimplementedContainerServiceServer() {}

// RegisterContainerServiceServer registers srv on s.
func RegisterContainerServiceServer(s grpc.ServiceRegistrar, srv ContainerServiceServer) {
	s.RegisterService(&ContainerService_ServiceDesc, srv)
}

func _ContainerService_CreateContainer_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateContainerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContainerServiceServer).CreateContainer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ContainerService_CreateContainer_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContainerServiceServer).CreateContainer(ctx, req.(*CreateContainerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContainerService_OpenContainer_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(OpenContainerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContainerServiceServer).OpenContainer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ContainerService_OpenContainer_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContainerServiceServer).OpenContainer(ctx, req.(*OpenContainerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContainerService_CloseContainer_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CloseContainerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContainerServiceServer).CloseContainer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ContainerService_CloseContainer_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContainerServiceServer).CloseContainer(ctx, req.(*CloseContainerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContainerService_QueryContainer_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QueryContainerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContainerServiceServer).QueryContainer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ContainerService_QueryContainer_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContainerServiceServer).QueryContainer(ctx, req.(*QueryContainerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContainerService_SetProperties_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SetPropertiesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContainerServiceServer).SetProperties(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ContainerService_SetProperties_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContainerServiceServer).SetProperties(ctx, req.(*SetPropertiesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContainerService_CreateSnapshot_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateSnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContainerServiceServer).CreateSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ContainerService_CreateSnapshot_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContainerServiceServer).CreateSnapshot(ctx, req.(*CreateSnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContainerService_DestroySnapshot_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DestroySnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContainerServiceServer).DestroySnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ContainerService_DestroySnapshot_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContainerServiceServer).DestroySnapshot(ctx, req.(*DestroySnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContainerService_DestroyContainer_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DestroyContainerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContainerServiceServer).DestroyContainer(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ContainerService_DestroyContainer_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContainerServiceServer).DestroyContainer(ctx, req.(*DestroyContainerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ContainerService_ListContainers_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListContainersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContainerServiceServer).ListContainers(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ContainerService_ListContainers_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContainerServiceServer).ListContainers(ctx, req.(*ListContainersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ContainerService_ServiceDesc is the grpc.ServiceDesc for ContainerService.
var ContainerService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContainerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateContainer",
			Handler:    _ContainerService_CreateContainer_Handler,
		},
		{
			MethodName: "OpenContainer",
			Handler:    _ContainerService_OpenContainer_Handler,
		},
		{
			MethodName: "CloseContainer",
			Handler:    _ContainerService_CloseContainer_Handler,
		},
		{
			MethodName: "QueryContainer",
			Handler:    _ContainerService_QueryContainer_Handler,
		},
		{
			MethodName: "SetProperties",
			Handler:    _ContainerService_SetProperties_Handler,
		},
		{
			MethodName: "CreateSnapshot",
			Handler:    _ContainerService_CreateSnapshot_Handler,
		},
		{
			MethodName: "DestroySnapshot",
			Handler:    _ContainerService_DestroySnapshot_Handler,
		},
		{
			MethodName: "DestroyContainer",
			Handler:    _ContainerService_DestroyContainer_Handler,
		},
		{
			MethodName: "ListContainers",
			Handler:    _ContainerService_ListContainers_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "container.proto",
}
