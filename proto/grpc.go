// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package proto holds shared gRPC server and client construction.
package proto

import (
	"context"

	zctx "github.com/LeeDigitalWorks/zapprops/pkg/context"
	pool "github.com/LeeDigitalWorks/zapprops/pkg/grpc/pool"
	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/proto/container_pb"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

// Re-export constants from pkg/grpc/pool
const (
	Max_Message_Size = pool.MaxMessageSize
	KeepAliveTime    = pool.KeepAliveTime
	KeepAliveTimeout = pool.KeepAliveTimeout
)

// ConnectionFactory is a function that creates a new gRPC client connection.
type ConnectionFactory func() (*grpc.ClientConn, error)

func DefaultFactory(address string, opts ...grpc.DialOption) ConnectionFactory {
	options := append(opts,
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    KeepAliveTime,
			Timeout: KeepAliveTimeout,
		}),
	)

	return func() (*grpc.ClientConn, error) {
		return grpc.NewClient(address, options...)
	}
}

// NewContainerClient dials address and returns a container client with the
// connection backing it. The caller closes the connection.
func NewContainerClient(address string, opts ...grpc.DialOption) (container_pb.ContainerServiceClient, *grpc.ClientConn, error) {
	conn, err := DefaultFactory(address, opts...)()
	if err != nil {
		logger.Error().Err(err).Str("address", address).Msg("failed to create container client")
		return nil, nil, err
	}
	return container_pb.NewContainerServiceClient(conn), conn, nil
}

// NewGRPCServer returns a server with keepalive, message size limits and
// request ids. Further interceptors passed through opts run after the
// request id one.
func NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	var options []grpc.ServerOption
	options = append(options,
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    KeepAliveTime,    // wait time before ping if no activity
			Timeout: KeepAliveTimeout, // ping timeout
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             KeepAliveTime, // min time a client should wait before sending a ping
			PermitWithoutStream: true,
		}),
		grpc.MaxRecvMsgSize(Max_Message_Size),
		grpc.MaxSendMsgSize(Max_Message_Size),
		grpc.UnaryInterceptor(requestIDUnaryInterceptor()),
	)
	for _, opt := range opts {
		if opt != nil {
			options = append(options, opt)
		}
	}
	return grpc.NewServer(options...)
}

// requestIDUnaryInterceptor takes the request id from incoming metadata or
// assigns one, echoes it in the trailer and tags the request logger.
func requestIDUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		incomingMd, _ := metadata.FromIncomingContext(ctx)
		idList := incomingMd.Get(zctx.RequestKey)
		var reqID string
		if len(idList) > 0 {
			reqID = idList[0]
		}
		if reqID == "" {
			ctx, reqID = zctx.WithUUID(ctx)
		} else {
			ctx = zctx.FromUUID(ctx, reqID)
		}
		ctx = logger.WithRequestID(ctx, reqID)

		_ = grpc.SetTrailer(ctx, metadata.Pairs(zctx.RequestKey, reqID))

		return handler(ctx, req)
	}
}

// RequestIDUnaryClientInterceptor forwards the request id of ctx, if any,
// to the server.
func RequestIDUnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if id := zctx.RequestIDFrom(ctx); id != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, zctx.RequestKey, id)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
