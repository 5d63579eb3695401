// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package filter holds request filters applied in front of the container
// service. Rate limiting runs as a gRPC unary interceptor.
package filter

import (
	"context"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/logger"
	"github.com/LeeDigitalWorks/zapprops/pkg/utils"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Class groups methods that share a budget.
type Class string

const (
	ClassRead  Class = "read"
	ClassWrite Class = "write"
)

// writeMethods lists the method names that mutate container state.
var writeMethods = map[string]struct{}{
	"CreateContainer":  {},
	"SetProperties":    {},
	"CreateSnapshot":   {},
	"DestroySnapshot":  {},
	"DestroyContainer": {},
}

// ClassOf returns the class of a full gRPC method name such as
// "/zapprops.container.ContainerService/QueryContainer".
func ClassOf(fullMethod string) Class {
	name := fullMethod
	if i := strings.LastIndexByte(fullMethod, '/'); i >= 0 {
		name = fullMethod[i+1:]
	}
	if _, ok := writeMethods[name]; ok {
		return ClassWrite
	}
	return ClassRead
}

// RateLimitConfig holds rate limiting configuration. A zero rate disables
// that limit.
type RateLimitConfig struct {
	// Global limits across all peers
	GlobalReadRPS  float64 `mapstructure:"global_read_rps"`
	GlobalWriteRPS float64 `mapstructure:"global_write_rps"`

	// Per-peer limits keyed by remote host
	PeerReadRPS  float64 `mapstructure:"peer_read_rps"`
	PeerWriteRPS float64 `mapstructure:"peer_write_rps"`

	// BurstMultiplier allows temporary bursts above the rate
	BurstMultiplier int `mapstructure:"burst_multiplier"`

	// IdleTimeout evicts per-peer limiters unused for this long
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// Redis shares per-peer budgets between servers when enabled
	Redis SharedBudgetConfig `mapstructure:"redis"`
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		GlobalReadRPS:   20000,
		GlobalWriteRPS:  5000,
		PeerReadRPS:     1000,
		PeerWriteRPS:    200,
		BurstMultiplier: 2,
		IdleTimeout:     5 * time.Minute,
		Redis:           DefaultSharedBudgetConfig(),
	}
}

type peerLimiters struct {
	read     *rate.Limiter
	write    *rate.Limiter
	lastUsed atomic.Int64
}

func (p *peerLimiters) forClass(c Class) *rate.Limiter {
	if c == ClassWrite {
		return p.write
	}
	return p.read
}

// RateLimiter limits requests globally and per peer.
type RateLimiter struct {
	config RateLimitConfig

	globalRead  *rate.Limiter
	globalWrite *rate.Limiter

	peers *utils.ShardedMap[string, *peerLimiters]

	// distributed is nil unless Redis limiting is enabled
	distributed *SharedBudget

	now func() time.Time
}

// NewRateLimiter creates a rate limiter. distributed may be nil.
func NewRateLimiter(cfg RateLimitConfig, distributed *SharedBudget) *RateLimiter {
	if cfg.BurstMultiplier < 1 {
		cfg.BurstMultiplier = 1
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	return &RateLimiter{
		config:      cfg,
		globalRead:  newLimiter(cfg.GlobalReadRPS, cfg.BurstMultiplier),
		globalWrite: newLimiter(cfg.GlobalWriteRPS, cfg.BurstMultiplier),
		peers:       utils.NewShardedMap[string, *peerLimiters](),
		distributed: distributed,
		now:         time.Now,
	}
}

func newLimiter(rps float64, burstMultiplier int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps) * burstMultiplier
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Allow reports whether one request of class c from peerKey may proceed
// and, if not, which scope rejected it.
func (rl *RateLimiter) Allow(ctx context.Context, peerKey string, c Class) (bool, string) {
	now := rl.now()

	global := rl.globalRead
	if c == ClassWrite {
		global = rl.globalWrite
	}
	if !global.AllowN(now, 1) {
		return false, "global"
	}

	if peerKey == "" {
		return true, ""
	}

	if rl.distributed != nil {
		rps, burst := rl.peerRate(c)
		if d, _ := rl.distributed.Take(ctx, c, peerKey, rps, burst); !d.Allowed {
			return false, "distributed"
		}
		return true, ""
	}

	pl, _ := rl.peers.LoadOrStore(peerKey, &peerLimiters{
		read:  newLimiter(rl.config.PeerReadRPS, rl.config.BurstMultiplier),
		write: newLimiter(rl.config.PeerWriteRPS, rl.config.BurstMultiplier),
	})
	pl.lastUsed.Store(now.UnixNano())
	if !pl.forClass(c).AllowN(now, 1) {
		return false, "peer"
	}
	return true, ""
}

func (rl *RateLimiter) peerRate(c Class) (float64, int) {
	rps := rl.config.PeerReadRPS
	if c == ClassWrite {
		rps = rl.config.PeerWriteRPS
	}
	return rps, int(rps) * rl.config.BurstMultiplier
}

// Cleanup drops per-peer limiters idle for longer than IdleTimeout and
// returns how many were removed.
func (rl *RateLimiter) Cleanup() int {
	cutoff := rl.now().Add(-rl.config.IdleTimeout).UnixNano()
	n := rl.peers.DeleteIf(func(_ string, pl *peerLimiters) bool {
		return pl.lastUsed.Load() < cutoff
	})
	RateLimitActiveLimiters.Set(float64(rl.peers.Len()))
	return n
}

// Run evicts idle limiters until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	utils.RunJittered(ctx, rl.config.IdleTimeout, 0.1, func() {
		if n := rl.Cleanup(); n > 0 {
			logger.Debug().Int("evicted", n).Msg("evicted idle rate limiters")
		}
	})
}

// UnaryServerInterceptor rejects requests over budget with
// codes.ResourceExhausted.
func (rl *RateLimiter) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		c := ClassOf(info.FullMethod)
		ok, scope := rl.Allow(ctx, peerKey(ctx), c)
		if !ok {
			RateLimitRequestsTotal.WithLabelValues(string(c), "rejected").Inc()
			RateLimitRejectionsTotal.WithLabelValues(scope, string(c)).Inc()
			logger.Ctx(ctx).Debug().Str("method", info.FullMethod).Str("scope", scope).Msg("request rate limited")
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded (%s)", scope)
		}
		RateLimitRequestsTotal.WithLabelValues(string(c), "allowed").Inc()
		return handler(ctx, req)
	}
}

// peerKey returns the remote host of the calling peer without its port.
func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
