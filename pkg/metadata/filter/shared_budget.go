// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package filter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// SharedBudget keeps per-peer token buckets in Redis so every container
// server in a deployment draws from the same allowance for a client.
type SharedBudget struct {
	client redis.UniversalClient
	config SharedBudgetConfig
	now    func() time.Time
}

// SharedBudgetConfig configures the Redis connection behind a SharedBudget.
type SharedBudgetConfig struct {
	Enabled bool `mapstructure:"enabled"`

	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`

	KeyPrefix string `mapstructure:"key_prefix"`

	// FailOpen admits requests when Redis cannot be reached.
	FailOpen bool `mapstructure:"fail_open"`
}

// DefaultSharedBudgetConfig returns defaults for a local Redis.
func DefaultSharedBudgetConfig() SharedBudgetConfig {
	return SharedBudgetConfig{
		Addr:      "localhost:6379",
		PoolSize:  10,
		KeyPrefix: "zapprops:budget:",
		FailOpen:  true,
	}
}

// NewSharedBudget connects to Redis and verifies it is reachable.
func NewSharedBudget(cfg SharedBudgetConfig) (*SharedBudget, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewSharedBudgetWithClient(client, cfg), nil
}

// NewSharedBudgetWithClient wraps an existing client.
func NewSharedBudgetWithClient(client redis.UniversalClient, cfg SharedBudgetConfig) *SharedBudget {
	return &SharedBudget{client: client, config: cfg, now: time.Now}
}

// takeScript refills the bucket for the time elapsed since it was last
// touched, then takes one token if available. The key expires once a full
// bucket would have refilled, so idle peers cost nothing.
//
// KEYS[1] bucket hash; ARGV: now (ms), rate (tokens/s), burst
// Returns {allowed, wait_ms}.
var takeScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = burst
  ts = now
end

local elapsed = now - ts
if elapsed < 0 then
  elapsed = 0
end
tokens = math.min(burst, tokens + elapsed * rate / 1000)

local allowed = 0
local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  wait = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", ARGV[1])
redis.call("PEXPIRE", KEYS[1], math.ceil(burst * 1000 / rate) + 1000)
return {allowed, wait}
`)

// Decision is the outcome of one Take.
type Decision struct {
	Allowed bool
	// RetryAfter is how long until a token is available when denied.
	RetryAfter time.Duration
}

// Take draws one token from the bucket for peer and class c. Buckets hold
// up to burst tokens and refill at rps per second. When Redis fails the
// decision follows FailOpen and the error is returned alongside it.
func (b *SharedBudget) Take(ctx context.Context, c Class, peer string, rps float64, burst int) (Decision, error) {
	if rps <= 0 {
		return Decision{Allowed: true}, nil
	}
	if burst < 1 {
		burst = 1
	}

	key := b.config.KeyPrefix + string(c) + ":" + peer
	now := strconv.FormatInt(b.now().UnixMilli(), 10)
	res, err := takeScript.Run(ctx, b.client, []string{key}, now, rps, burst).Int64Slice()
	if err != nil {
		RateLimitRedisErrorsTotal.Inc()
		logger.Ctx(ctx).Warn().Err(err).Str("peer", peer).Msg("shared budget check failed")
		return Decision{Allowed: b.config.FailOpen}, err
	}
	return Decision{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}, nil
}

// Close closes the Redis connection.
func (b *SharedBudget) Close() error {
	return b.client.Close()
}
