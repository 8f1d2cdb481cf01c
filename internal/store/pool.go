// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store opens the PostgreSQL connection pool and manages the
// embedded schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolConfig controls how Open connects.
type PoolConfig struct {
	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
	// ConnectAttempts is how many times the initial ping is retried.
	ConnectAttempts uint64
	// ConnectBackoff is the first retry delay; it doubles up to 10s.
	ConnectBackoff time.Duration
	Logger         *slog.Logger
}

// DefaultPoolConfig returns the settings used by the serve command.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ConnectAttempts: 5,
		ConnectBackoff:  500 * time.Millisecond,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Open creates a pgx pool for databaseURL and waits until the database
// answers a ping, retrying with exponential backoff.
func Open(ctx context.Context, databaseURL string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitForDB(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForDB(ctx context.Context, db pinger, cfg PoolConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.ConnectBackoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}

	backoff := retry.NewExponential(base)
	backoff = retry.WithCappedDuration(10*time.Second, backoff)
	backoff = retry.WithMaxRetries(cfg.ConnectAttempts, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.Warn("database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
