// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Messages surfaced to clients by the reset flow.
const (
	MsgResetEmailInvalid = "The selected email is invalid."
	MsgResetLinkSent     = "We have emailed your password reset link."
	MsgPasswordReset     = "Your password has been reset!"
	MsgResetTokenInvalid = "This password reset token is invalid."
)

// ResetInput carries the fields of a password reset request.
type ResetInput struct {
	Token                string
	Email                string
	Password             string
	PasswordConfirmation string
	// NonString lists fields that were submitted as something other than a string.
	NonString []string
}

func (in ResetInput) fields() map[string]string {
	return map[string]string{
		"token":                 in.Token,
		"email":                 in.Email,
		"password":              in.Password,
		"password_confirmation": in.PasswordConfirmation,
	}
}

// PasswordResetService handles password reset operations.
type PasswordResetService struct {
	users    UserRepository
	resets   PasswordResetRepository
	hasher   PasswordHasher
	tx       Transactor
	notifier ResetNotifier
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewPasswordResetService creates a new PasswordResetService.
// Recognised options: WithResetTTL, WithLogger, WithClock.
func NewPasswordResetService(
	users UserRepository,
	resets PasswordResetRepository,
	hasher PasswordHasher,
	tx Transactor,
	notifier ResetNotifier,
	opts ...Option,
) (*PasswordResetService, error) {
	switch {
	case users == nil:
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("users repository is required")
	case resets == nil:
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("reset repository is required")
	case hasher == nil:
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("password hasher is required")
	case tx == nil:
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("transactor is required")
	case notifier == nil:
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("notifier is required")
	}
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &PasswordResetService{
		users:    users,
		resets:   resets,
		hasher:   hasher,
		tx:       tx,
		notifier: notifier,
		ttl:      o.resetTTL,
		logger:   o.logger,
		now:      o.now,
	}, nil
}

// RequestReset creates a reset token for a registered email, replacing any
// outstanding one, and hands it to the notifier. The plaintext token is returned.
//
// Unlike Login, an unknown email is reported to the caller.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (plaintext string, err error) {
	ctx, end := startSpan(ctx, "auth.password_reset.request")
	defer func() { end(err) }()

	if verr := Validate(ForgotPasswordRules, map[string]string{"email": email}); verr != nil {
		return "", verr
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", NewValidationError("email", MsgResetEmailInvalid).WithCause(ErrNotFound)
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, hash, err := GenerateToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	reset, err := NewPasswordReset(user.Email, hash, s.now().Add(s.ttl).UTC())
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "create password reset").
			Wrap(err)
	}

	if err := s.resets.Put(ctx, reset); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store password reset").
			Wrap(err)
	}

	notice := ResetNotice{
		Email:     user.Email,
		Name:      user.Name,
		Token:     token,
		ExpiresAt: reset.ExpiresAt,
	}
	if err := s.notifier.NotifyReset(ctx, notice); err != nil {
		return "", oops.Code("RESET_NOTIFY_FAILED").
			With("email", reset.Email).
			Wrap(err)
	}

	return token, nil
}

// ResetPassword consumes a reset token and stores the new password.
// The password update and token deletion happen in one transaction, so a token
// can be used at most once and a failed reset changes nothing.
func (s *PasswordResetService) ResetPassword(ctx context.Context, in ResetInput) (err error) {
	ctx, end := startSpan(ctx, "auth.password_reset.complete")
	defer func() { end(err) }()

	if verr := Validate(ResetPasswordRules, in.fields(), in.NonString...); verr != nil {
		return verr
	}

	// The email must belong to a user before the token is considered.
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewValidationError("email", MsgResetEmailInvalid).WithCause(ErrNotFound)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	tokenHash := HashToken(in.Token)
	reset, err := s.resets.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalidResetToken("unknown token")
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}

	if reset.Email != EmailKey(in.Email) {
		return oops.Code("RESET_EMAIL_MISMATCH").Errorf("%s", MsgResetTokenInvalid)
	}
	if reset.IsExpiredAt(s.now()) {
		return invalidResetToken("expired")
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		// A concurrent reset may have consumed or replaced the row since lookup.
		if err := s.resets.Delete(ctx, reset.Email, tokenHash); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidResetToken("already used")
			}
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "delete password reset").
				Wrap(err)
		}
		if err := s.users.UpdatePassword(ctx, user.ID, hashed); err != nil {
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "update password").
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return err //nolint:wrapcheck // callback errors already carry codes
	}

	s.logger.InfoContext(ctx, "password reset completed", "user_id", user.ID.String())
	return nil
}

// PurgeExpired removes expired reset rows and returns how many were deleted.
func (s *PasswordResetService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}

func invalidResetToken(reason string) error {
	return oops.Code("RESET_TOKEN_INVALID").
		With("reason", reason).
		Errorf("%s", MsgResetTokenInvalid)
}
