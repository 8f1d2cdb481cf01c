// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/memory"
	"github.com/holomush/holoauth/internal/auth/postgres"
	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/notify"
	"github.com/holomush/holoauth/internal/observability"
	"github.com/holomush/holoauth/internal/ratelimit"
	"github.com/holomush/holoauth/internal/store"
)

// backend bundles the repositories of one storage driver.
type backend struct {
	users  auth.UserRepository
	tokens auth.AccessTokenRepository
	resets auth.PasswordResetRepository
	tx     auth.Transactor
	ready  observability.ReadinessChecker
	close  func()
}

// openBackend connects the configured store, running migrations first when
// auto_migrate is set.
func openBackend(ctx context.Context, cfg *config.Config, deps *ServeDeps, logger *slog.Logger) (*backend, error) {
	if cfg.Store.Driver == config.DriverMemory {
		logger.Warn("using in-memory store; data is lost on exit")
		s := memory.NewStore()
		return &backend{
			users:  s.Users(),
			tokens: s.AccessTokens(),
			resets: s.PasswordResets(),
			tx:     s,
			close:  func() {},
		}, nil
	}

	if cfg.Store.AutoMigrate {
		if err := autoMigrate(cfg.Store.DatabaseURL, deps, logger); err != nil {
			return nil, err
		}
	}

	poolCfg := store.DefaultPoolConfig()
	poolCfg.MaxConns = cfg.Store.MaxConns
	poolCfg.Logger = logger
	pool, err := deps.PoolFactory(ctx, cfg.Store.DatabaseURL, poolCfg)
	if err != nil {
		return nil, oops.With("operation", "open database").Wrap(err)
	}
	logger.Info("connected to database")

	return &backend{
		users:  postgres.NewUserRepository(pool),
		tokens: postgres.NewAccessTokenRepository(pool),
		resets: postgres.NewPasswordResetRepository(pool),
		tx:     postgres.NewTransactor(pool),
		ready:  pool.Ping,
		close:  pool.Close,
	}, nil
}

func autoMigrate(databaseURL string, deps *ServeDeps, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("database migrations applied")
	return nil
}

// newAttemptStore builds the configured login attempt store. The returned
// func releases it.
func newAttemptStore(ctx context.Context, cfg config.RateLimitConfig) (auth.AttemptStore, func() error, error) {
	if cfg.Driver != config.DriverRedis {
		return ratelimit.NewMemoryStore(), func() error { return nil }, nil
	}
	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // carries RATELIMIT_* code
	}
	rs, err := ratelimit.NewRedisStore(client, ratelimit.DefaultKeyPrefix)
	if err != nil {
		_ = client.Close()
		return nil, nil, err //nolint:wrapcheck // carries RATELIMIT_* code
	}
	return rs, client.Close, nil
}

// newNotifier builds the configured reset notifier. The returned func
// releases it.
func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) (auth.ResetNotifier, func(), error) {
	if cfg.Driver != config.DriverNATS {
		return notify.NewLogNotifier(logger), func() {}, nil
	}
	nc, err := notify.Connect(cfg.NATSURL)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // carries NOTIFY_* code
	}
	n, err := notify.NewNATSNotifier(nc, cfg.Subject)
	if err != nil {
		nc.Close()
		return nil, nil, err //nolint:wrapcheck // carries NOTIFY_* code
	}
	drain := func() {
		if err := nc.Drain(); err != nil {
			logger.Warn("failed to drain nats connection", "error", err)
		}
	}
	return n, drain, nil
}

// services holds the wired auth services.
type services struct {
	auth     *auth.Service
	resets   *auth.PasswordResetService
	registry *auth.TokenRegistry
}

// buildServices wires the auth core on top of a backend.
func buildServices(cfg *config.Config, b *backend, attempts auth.AttemptStore, notifier auth.ResetNotifier, logger *slog.Logger) (*services, error) {
	hasher, err := auth.NewArgon2idHasherWithParams(cfg.HasherParams())
	if err != nil {
		return nil, err //nolint:wrapcheck // carries AUTH_* code
	}

	registry, err := auth.NewTokenRegistry(b.tokens, auth.WithTokenTTL(cfg.Auth.TokenTTL), auth.WithLogger(logger))
	if err != nil {
		return nil, err //nolint:wrapcheck // carries AUTH_* code
	}

	authOpts := []auth.Option{auth.WithLogger(logger)}
	if attempts != nil && cfg.Auth.Lockout.Threshold > 0 {
		limiter, err := auth.NewAttemptLimiter(attempts, cfg.LockoutPolicy())
		if err != nil {
			return nil, err //nolint:wrapcheck // carries LIMITER_* code
		}
		authOpts = append(authOpts, auth.WithAttemptLimiter(limiter))
	}
	authSvc, err := auth.NewAuthService(b.users, registry, hasher, authOpts...)
	if err != nil {
		return nil, err //nolint:wrapcheck // carries AUTH_* code
	}

	resets, err := auth.NewPasswordResetService(b.users, b.resets, hasher, b.tx, notifier,
		auth.WithResetTTL(cfg.Auth.ResetTTL), auth.WithLogger(logger))
	if err != nil {
		return nil, err //nolint:wrapcheck // carries RESET_* code
	}

	return &services{auth: authSvc, resets: resets, registry: registry}, nil
}

// purgeExpired deletes expired access tokens and password resets.
func purgeExpired(ctx context.Context, svc *services, metrics *observability.Metrics) (tokens, resets int64, err error) {
	tokens, err = svc.registry.PurgeExpired(ctx)
	if err != nil {
		return 0, 0, oops.With("operation", "purge access tokens").Wrap(err)
	}
	metrics.RecordPurge("access_tokens", tokens)

	resets, err = svc.resets.PurgeExpired(ctx)
	if err != nil {
		return tokens, 0, oops.With("operation", "purge password resets").Wrap(err)
	}
	metrics.RecordPurge("password_resets", resets)
	return tokens, resets, nil
}

// runPurger purges expired rows every interval until ctx is done.
func runPurger(ctx context.Context, svc *services, metrics *observability.Metrics, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tokens, resets, err := purgeExpired(ctx, svc, metrics)
			if err != nil {
				logger.Warn("periodic purge failed", "error", err)
				continue
			}
			logger.Debug("purged expired rows", "access_tokens", tokens, "password_resets", resets)
		}
	}
}

// sweeper is implemented by attempt stores that hold expired windows in memory.
type sweeper interface {
	Sweep() int
}

// runSweeper drops expired attempt windows every interval until ctx is done.
func runSweeper(ctx context.Context, s sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
