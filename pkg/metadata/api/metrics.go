// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"strings"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapprops",
		Subsystem: "grpc",
		Name:      "requests_total",
		Help:      "Number of container service requests received",
	}, []string{"method", "code"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zapprops",
		Subsystem: "grpc",
		Name:      "request_duration_seconds",
		Help:      "Duration of container service requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "code"})
)

func init() {
	debug.Registry().MustRegister(requestsTotal, requestDuration)
}

// MetricsUnaryInterceptor records request counts and latency by method and
// gRPC status code.
func MetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		method := info.FullMethod
		if i := strings.LastIndexByte(method, '/'); i >= 0 {
			method = method[i+1:]
		}
		code := status.Code(err).String()
		requestsTotal.WithLabelValues(method, code).Inc()
		requestDuration.WithLabelValues(method, code).Observe(time.Since(start).Seconds())
		return resp, err
	}
}
