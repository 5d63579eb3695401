// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package redis provides a Redis implementation of the db.DB interface.
//
// Each container is stored as one JSON record under its own key, so a read
// is a single GET and always sees a whole record. Writes use WATCH/MULTI
// optimistic transactions and are retried with backoff when another writer
// wins the race. Sorted sets with equal scores index container ids for
// lexicographic listing, globally and per pool.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LeeDigitalWorks/zapprops/pkg/metadata/db"
	"github.com/LeeDigitalWorks/zapprops/pkg/property"
	"github.com/LeeDigitalWorks/zapprops/pkg/types"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// Config configures the Redis store.
type Config struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`

	// KeyPrefix namespaces every key written by the store.
	KeyPrefix string `mapstructure:"key_prefix"`

	// MaxRetries bounds the retries of a conflicting optimistic transaction.
	MaxRetries uint64 `mapstructure:"max_retries"`
	// RetryBase is the first backoff delay; delays grow exponentially up to
	// RetryCap.
	RetryBase time.Duration `mapstructure:"retry_base"`
	RetryCap  time.Duration `mapstructure:"retry_cap"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:       "localhost:6379",
		PoolSize:   10,
		KeyPrefix:  "zapprops:",
		MaxRetries: 50,
		RetryBase:  time.Millisecond,
		RetryCap:   50 * time.Millisecond,
	}
}

// Redis implements db.DB on a Redis server.
type Redis struct {
	client *redis.Client
	config Config
}

// NewRedis connects to cfg.Addr and verifies the connection.
func NewRedis(cfg Config) (*Redis, error) {
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

	return NewRedisWithClient(client, cfg), nil
}

// NewRedisWithClient creates a store with an existing Redis client. The
// store takes ownership of the client and closes it on Close.
func NewRedisWithClient(client *redis.Client, cfg Config) *Redis {
	def := DefaultConfig()
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = def.RetryCap
	}
	return &Redis{client: client, config: cfg}
}

// Migrate is a no-op; Redis needs no schema.
func (r *Redis) Migrate(ctx context.Context) error { return nil }

func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping verifies the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) containerKey(id uuid.UUID) string {
	return r.config.KeyPrefix + "container:" + id.String()
}

func (r *Redis) indexKey() string {
	return r.config.KeyPrefix + "containers"
}

func (r *Redis) poolIndexKey(pool uuid.UUID) string {
	return r.config.KeyPrefix + "pool:" + pool.String() + ":containers"
}

// ============================================================================
// Container Operations
// ============================================================================

func (r *Redis) CreateContainer(ctx context.Context, info *types.ContainerInfo, props property.Set) error {
	if err := db.CheckCreate(info, props); err != nil {
		return err
	}
	data, err := json.Marshal(db.NewRecord(info, props))
	if err != nil {
		return fmt.Errorf("encode container record: %w", err)
	}

	key := r.containerKey(info.ID)
	return r.transact(ctx, key, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("check container: %w", err)
		}
		if exists != 0 {
			return db.ErrContainerExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			member := redis.Z{Member: info.ID.String()}
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, r.indexKey(), member)
			pipe.ZAdd(ctx, r.poolIndexKey(info.PoolID), member)
			return nil
		})
		return err
	})
}

func (r *Redis) GetContainer(ctx context.Context, id uuid.UUID) (*types.ContainerInfo, error) {
	rec, err := r.get(ctx, r.client, r.containerKey(id))
	if err != nil {
		return nil, err
	}
	return rec.Info, nil
}

func (r *Redis) GetProperties(ctx context.Context, id uuid.UUID, ids []property.ID) (property.Set, uint64, error) {
	ids, err := db.RequestedIDs(ids)
	if err != nil {
		return nil, 0, err
	}
	rec, err := r.get(ctx, r.client, r.containerKey(id))
	if err != nil {
		return nil, 0, err
	}
	props, err := rec.Props.Select(ids)
	if err != nil {
		return nil, 0, err
	}
	return props, rec.Version, nil
}

func (r *Redis) PutProperties(ctx context.Context, id uuid.UUID, props property.Set, expectedVersion uint64) (uint64, error) {
	if err := db.CheckPut(props); err != nil {
		return 0, err
	}

	var version uint64
	err := r.update(ctx, id, func(rec *db.Record) (*db.Record, error) {
		next, err := rec.Put(props, expectedVersion, time.Now().UnixNano())
		if err != nil {
			return nil, err
		}
		version = next.Version
		return next, nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (r *Redis) DestroyContainer(ctx context.Context, id uuid.UUID) error {
	key := r.containerKey(id)
	return r.transact(ctx, key, func(tx *redis.Tx) error {
		rec, err := r.get(ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, r.indexKey(), id.String())
			pipe.ZRem(ctx, r.poolIndexKey(rec.Info.PoolID), id.String())
			return nil
		})
		return err
	})
}

func (r *Redis) ListContainers(ctx context.Context, params *db.ListContainersParams) (*db.ListContainersResult, error) {
	if params == nil {
		params = &db.ListContainersParams{}
	}
	after, err := db.ParseContinuationToken(params.ContinuationToken)
	if err != nil {
		return nil, err
	}
	limit := params.PageSize()

	index := r.indexKey()
	if params.PoolID != uuid.Nil {
		index = r.poolIndexKey(params.PoolID)
	}
	start := "-"
	if after != uuid.Nil {
		start = "(" + after.String()
	}

	ids, err := r.client.ZRangeByLex(ctx, index, &redis.ZRangeBy{
		Min:   start,
		Max:   "+",
		Count: int64(limit + 1),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	result := &db.ListContainersResult{}
	if len(ids) > limit {
		ids = ids[:limit]
		result.IsTruncated = true
		result.NextContinuationToken = ids[limit-1]
	}
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("corrupt index member %q: %w", s, err)
		}
		keys[i] = r.containerKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load containers: %w", err)
	}
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// Destroyed between the index read and the load.
			continue
		}
		rec, err := decodeRecord([]byte(s))
		if err != nil {
			return nil, err
		}
		result.Containers = append(result.Containers, rec.Info)
	}
	return result, nil
}

// ============================================================================
// Snapshot Operations
// ============================================================================

func (r *Redis) AddSnapshot(ctx context.Context, id uuid.UUID, epoch uint64, limit uint64) error {
	return r.update(ctx, id, func(rec *db.Record) (*db.Record, error) {
		return rec.AddSnapshot(epoch, limit, time.Now().UnixNano())
	})
}

func (r *Redis) DeleteSnapshot(ctx context.Context, id uuid.UUID, epoch uint64) error {
	return r.update(ctx, id, func(rec *db.Record) (*db.Record, error) {
		return rec.DeleteSnapshot(epoch, time.Now().UnixNano())
	})
}

// ============================================================================
// Helpers
// ============================================================================

// transact runs fn in a WATCH transaction on key, retrying with backoff
// while other writers invalidate the watch.
func (r *Redis) transact(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	b := retry.NewExponential(r.config.RetryBase)
	b = retry.WithCappedDuration(r.config.RetryCap, b)
	b = retry.WithJitterPercent(50, b)
	b = retry.WithMaxRetries(r.config.MaxRetries, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := r.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// update applies fn to the record of id and writes the result back.
func (r *Redis) update(ctx context.Context, id uuid.UUID, fn func(*db.Record) (*db.Record, error)) error {
	key := r.containerKey(id)
	return r.transact(ctx, key, func(tx *redis.Tx) error {
		rec, err := r.get(ctx, tx, key)
		if err != nil {
			return err
		}
		next, err := fn(rec)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode container record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	})
}

func (r *Redis) get(ctx context.Context, c redis.Cmdable, key string) (*db.Record, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, db.ErrContainerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get container: %w", err)
	}
	return decodeRecord(data)
}

func decodeRecord(data []byte) (*db.Record, error) {
	var rec db.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode container record: %w", err)
	}
	return &rec, nil
}

// Ensure Redis implements db.DB
var _ db.DB = (*Redis)(nil)
