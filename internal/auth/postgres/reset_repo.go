// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

const resetColumns = `email, token_hash, created_at, expires_at`

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	db DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Put stores a reset for the email, replacing any outstanding one.
func (r *PasswordResetRepository) Put(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO password_resets (email, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at
	`, auth.EmailKey(reset.Email), reset.TokenHash, reset.CreatedAt, reset.ExpiresAt)
	if err != nil {
		return oops.Code("RESET_PUT_FAILED").
			With("operation", "upsert password_reset").
			With("email", reset.Email).
			Wrap(err)
	}
	return nil
}

// GetByEmail retrieves the outstanding reset for an email.
func (r *PasswordResetRepository) GetByEmail(ctx context.Context, email string) (*auth.PasswordReset, error) {
	key := auth.EmailKey(email)
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+resetColumns+` FROM password_resets WHERE email = $1`, key)

	reset, err := scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").
			With("email", key).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get reset by email").
			Wrap(err)
	}
	return reset, nil
}

// GetByTokenHash retrieves a reset request by its token hash.
func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+resetColumns+` FROM password_resets WHERE token_hash = $1`, tokenHash)

	reset, err := scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}
	return reset, nil
}

// Delete removes the reset for email if it still carries tokenHash.
func (r *PasswordResetRepository) Delete(ctx context.Context, email, tokenHash string) error {
	key := auth.EmailKey(email)
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM password_resets WHERE email = $1 AND token_hash = $2
	`, key, tokenHash)
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password_reset").
			With("email", key).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").
			With("email", key).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes all expired reset requests and returns the count.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM password_resets WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanReset scans one row into a PasswordReset.
// pgx.ErrNoRows is returned unchanged for callers to handle.
func scanReset(row pgx.Row) (*auth.PasswordReset, error) {
	var reset auth.PasswordReset
	if err := row.Scan(&reset.Email, &reset.TokenHash, &reset.CreatedAt, &reset.ExpiresAt); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	return &reset, nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
