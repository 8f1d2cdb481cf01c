// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// DefaultKeyPrefix namespaces attempt counters in a shared Redis.
const DefaultKeyPrefix = "holoauth:attempts:"

// RedisStore counts attempts in Redis so every API instance sees the same
// lockout state.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix uses DefaultKeyPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, oops.Code("RATELIMIT_INVALID_CONFIG").Errorf("redis client is required")
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("RATELIMIT_INVALID_CONFIG").
			With("operation", "parse redis url").
			Wrap(err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("RATELIMIT_CONNECT_FAILED").
			With("addr", opts.Addr).
			Wrap(err)
	}
	return client, nil
}

// Increment records a failure with INCR and starts the expiry on the first
// failure only, so the window does not slide with every attempt.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	k := s.prefix + key
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		return nil
	})
	if err != nil {
		return 0, oops.Code("RATELIMIT_INCREMENT_FAILED").With("key", key).Wrap(err)
	}
	return int(incr.Val()), nil
}

// Get returns the failure count and the window's remaining TTL.
func (s *RedisStore) Get(ctx context.Context, key string) (int, time.Duration, error) {
	k := s.prefix + key
	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, oops.Code("RATELIMIT_GET_FAILED").With("key", key).Wrap(err)
	}

	count, err := get.Int()
	if errors.Is(err, redis.Nil) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, oops.Code("RATELIMIT_GET_FAILED").With("key", key).Wrap(err)
	}
	remaining := ttl.Val()
	if remaining < 0 {
		// -1: no expiry set, -2: key vanished between commands.
		remaining = 0
	}
	return count, remaining, nil
}

// Reset deletes the counter for key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return oops.Code("RATELIMIT_RESET_FAILED").With("key", key).Wrap(err)
	}
	return nil
}

var _ auth.AttemptStore = (*RedisStore)(nil)
