// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/notify"
)

// NewPurgeCmd creates the purge subcommand.
func NewPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired access tokens and password resets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runPurgeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	return cmd
}

// runPurgeWithDeps removes expired rows once and reports the counts.
func runPurgeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	logger, err := setupLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer b.close()

	// No notices are sent while purging.
	notifier := notify.NewLogNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))

	svc, err := buildServices(cfg, b, nil, notifier, logger)
	if err != nil {
		return err
	}

	tokens, resets, err := purgeExpired(ctx, svc, nil)
	if err != nil {
		return err
	}
	logger.Info("purged expired rows", "access_tokens", tokens, "password_resets", resets)
	cmd.Printf("Purged %d expired access token(s) and %d expired password reset(s)\n", tokens, resets)
	return nil
}
