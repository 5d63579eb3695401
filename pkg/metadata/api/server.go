// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the container service over gRPC.
package api

import (
	"context"
	"errors"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/filter"
	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/service/container"
	"github.com/LeeDigitalWorks/zapprops/proto"
	"github.com/LeeDigitalWorks/zapprops/proto/container_pb"

	"google.golang.org/grpc"
)

// ContainerServer implements container_pb.ContainerServiceServer on top of
// the container service.
type ContainerServer struct {
	container_pb.UnimplementedContainerServiceServer

	svc         container.Service
	rateLimiter *filter.RateLimiter
}

// ServerConfig holds configuration for creating a ContainerServer
type ServerConfig struct {
	Service container.Service

	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *filter.RateLimiter
}

// NewContainerServer creates a container gRPC server.
func NewContainerServer(cfg ServerConfig) (*ContainerServer, error) {
	if cfg.Service == nil {
		return nil, errors.New("Service is required")
	}
	return &ContainerServer{
		svc:         cfg.Service,
		rateLimiter: cfg.RateLimiter,
	}, nil
}

// ServerOptions returns the interceptors this server expects, for use
// with proto.NewGRPCServer.
func (s *ContainerServer) ServerOptions() []grpc.ServerOption {
	interceptors := []grpc.UnaryServerInterceptor{MetricsUnaryInterceptor()}
	if s.rateLimiter != nil {
		interceptors = append(interceptors, s.rateLimiter.UnaryServerInterceptor())
	}
	return []grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}
}

// NewGRPCServer builds a gRPC server with the container service registered.
func (s *ContainerServer) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	gs := proto.NewGRPCServer(append(s.ServerOptions(), opts...)...)
	container_pb.RegisterContainerServiceServer(gs, s)
	return gs
}

// Run starts background maintenance until ctx is done.
func (s *ContainerServer) Run(ctx context.Context) {
	if s.rateLimiter != nil {
		s.rateLimiter.Run(ctx)
	}
}
