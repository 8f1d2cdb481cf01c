// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// DefaultResetTokenTTL is how long a password reset token stays valid.
const DefaultResetTokenTTL = time.Hour

// PasswordReset represents the single outstanding reset request for an email.
// Email holds the EmailKey form.
type PasswordReset struct {
	Email     string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewPasswordReset creates a validated PasswordReset instance.
func NewPasswordReset(email, tokenHash string, expiresAt time.Time) (*PasswordReset, error) {
	key := EmailKey(email)
	if key == "" {
		return nil, oops.Code("RESET_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &PasswordReset{
		Email:     key,
		TokenHash: tokenHash,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}, nil
}

// IsExpired returns true if the reset token has expired.
func (r *PasswordReset) IsExpired() bool {
	return r.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the reset token would be expired at the given time.
func (r *PasswordReset) IsExpiredAt(t time.Time) bool {
	return t.After(r.ExpiresAt)
}

// Matches reports whether token is the plaintext of this reset's hash.
func (r *PasswordReset) Matches(token string) bool {
	return VerifyToken(token, r.TokenHash)
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Put stores a reset for the email, replacing any previous one.
	Put(ctx context.Context, reset *PasswordReset) error

	// GetByEmail retrieves the outstanding reset for an email key.
	GetByEmail(ctx context.Context, email string) (*PasswordReset, error)

	// GetByTokenHash retrieves a reset by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordReset, error)

	// Delete removes the reset for email only if it still carries tokenHash.
	// Returns ErrNotFound when no such row exists, which makes consumption
	// single-use under concurrent resets.
	Delete(ctx context.Context, email, tokenHash string) error

	// DeleteExpired removes all expired resets and returns the count.
	DeleteExpired(ctx context.Context) (int64, error)
}

// ResetNotice is handed to a ResetNotifier after a reset token is created.
type ResetNotice struct {
	Email     string
	Name      string
	Token     string
	ExpiresAt time.Time
}

// ResetNotifier delivers reset tokens to the account owner.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, notice ResetNotice) error
}

// Transactor runs fn inside a storage transaction. Repository calls made with
// the context passed to fn participate in that transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
