// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package filter

import (
	"github.com/LeeDigitalWorks/zapprops/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RateLimitRequestsTotal tracks total requests checked by rate limiter
	RateLimitRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapprops",
		Subsystem: "ratelimit",
		Name:      "requests_total",
		Help:      "Total number of requests checked by rate limiter",
	}, []string{"class", "result"}) // class: read/write, result: allowed/rejected

	// RateLimitRejectionsTotal tracks rejected requests by scope
	RateLimitRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zapprops",
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Total number of rate-limited requests",
	}, []string{"scope", "class"}) // scope: global/peer/distributed

	// RateLimitActiveLimiters tracks number of active per-peer limiters
	RateLimitActiveLimiters = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zapprops",
		Subsystem: "ratelimit",
		Name:      "active_limiters",
		Help:      "Number of active per-peer rate limiters",
	})

	// RateLimitRedisErrorsTotal counts failed distributed checks
	RateLimitRedisErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "zapprops",
		Subsystem: "ratelimit",
		Name:      "redis_errors_total",
		Help:      "Total number of failed Redis rate limit checks",
	})
)

func init() {
	debug.Registry().MustRegister(
		RateLimitRequestsTotal,
		RateLimitRejectionsTotal,
		RateLimitActiveLimiters,
		RateLimitRedisErrorsTotal,
	)
}
