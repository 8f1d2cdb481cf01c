// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notify delivers password reset tokens to whoever sends the email.
package notify

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// LogNotifier records reset requests in the log. The token itself is only
// logged at debug level. Intended for development and for deployments where
// mail is sent out of band.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyReset logs the notice.
func (n *LogNotifier) NotifyReset(ctx context.Context, notice auth.ResetNotice) error {
	if notice.Email == "" {
		return oops.Code("NOTIFY_INVALID_NOTICE").Errorf("notice has no recipient")
	}
	n.logger.InfoContext(ctx, "password reset requested",
		"email", notice.Email,
		"expires_at", notice.ExpiresAt)
	n.logger.DebugContext(ctx, "password reset token",
		"email", notice.Email,
		"token", notice.Token)
	return nil
}

var _ auth.ResetNotifier = (*LogNotifier)(nil)
