// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

const tokenColumns = `id, user_id, name, token_hash, created_at, last_used_at, expires_at`

// AccessTokenRepository implements auth.AccessTokenRepository using PostgreSQL.
type AccessTokenRepository struct {
	db DB
}

// NewAccessTokenRepository creates a new AccessTokenRepository.
func NewAccessTokenRepository(db DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

// Create stores a new access token.
func (r *AccessTokenRepository) Create(ctx context.Context, token *auth.AccessToken) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO access_tokens (id, user_id, name, token_hash, created_at, last_used_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		token.ID.String(),
		token.UserID.String(),
		token.Name,
		token.TokenHash,
		token.CreatedAt,
		token.LastUsedAt,
		token.ExpiresAt,
	)
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert access_token").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a token by the hash of its plaintext.
func (r *AccessTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.AccessToken, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM access_tokens WHERE token_hash = $1`, tokenHash)

	token, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_HASH_FAILED").
			With("operation", "get token by hash").
			Wrap(err)
	}
	return token, nil
}

// GetByUser retrieves all tokens for a user, newest first.
func (r *AccessTokenRepository) GetByUser(ctx context.Context, userID ulid.ULID) ([]*auth.AccessToken, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `
		SELECT `+tokenColumns+`
		FROM access_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID.String())
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_USER_FAILED").
			With("operation", "get tokens by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var tokens []*auth.AccessToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, oops.Code("TOKEN_SCAN_FAILED").
				With("operation", "scan access_token row").
				Wrap(err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TOKEN_ROWS_ERROR").
			With("operation", "iterate access_token rows").
			Wrap(err)
	}
	return tokens, nil
}

// TouchLastUsed updates the LastUsedAt timestamp for a token.
func (r *AccessTokenRepository) TouchLastUsed(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		UPDATE access_tokens SET last_used_at = $2
		WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return oops.Code("TOKEN_TOUCH_FAILED").
			With("operation", "update last_used_at").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TOKEN_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a token by ID.
func (r *AccessTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM access_tokens WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete access_token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("TOKEN_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes all tokens for a user. Deleting nothing is not an error.
func (r *AccessTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM access_tokens WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("TOKEN_DELETE_BY_USER_FAILED").
			With("operation", "delete access_tokens by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired tokens and returns the count.
// Tokens without an expiry are kept.
func (r *AccessTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM access_tokens WHERE expires_at IS NOT NULL AND expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired access_tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanToken scans one row into an AccessToken.
// pgx.ErrNoRows is returned unchanged for callers to handle.
func scanToken(row pgx.Row) (*auth.AccessToken, error) {
	var (
		idStr     string
		userIDStr string
		token     auth.AccessToken
	)
	err := row.Scan(&idStr, &userIDStr, &token.Name, &token.TokenHash,
		&token.CreatedAt, &token.LastUsedAt, &token.ExpiresAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}

	if token.ID, err = parseID(idStr, "token_id"); err != nil {
		return nil, err
	}
	if token.UserID, err = parseID(userIDStr, "user_id"); err != nil {
		return nil, err
	}
	return &token, nil
}

// Compile-time interface check.
var _ auth.AccessTokenRepository = (*AccessTokenRepository)(nil)
