// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// TokenRegistry issues, resolves and revokes access tokens.
type TokenRegistry struct {
	tokens AccessTokenRepository
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewTokenRegistry creates a new TokenRegistry.
// Recognised options: WithTokenTTL, WithLogger, WithClock.
func NewTokenRegistry(tokens AccessTokenRepository, opts ...Option) (*TokenRegistry, error) {
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("tokens repository is required")
	}
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &TokenRegistry{
		tokens: tokens,
		ttl:    o.tokenTTL,
		logger: o.logger,
		now:    o.now,
	}, nil
}

// Issue creates a token for userID and returns it along with the plaintext.
// The plaintext cannot be recovered afterwards.
func (r *TokenRegistry) Issue(ctx context.Context, userID ulid.ULID, name string) (*AccessToken, string, error) {
	plaintext, hash, err := GenerateToken()
	if err != nil {
		return nil, "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	var expiresAt *time.Time
	if r.ttl > 0 {
		exp := r.now().Add(r.ttl).UTC()
		expiresAt = &exp
	}

	token, err := NewAccessToken(userID, name, hash, expiresAt)
	if err != nil {
		return nil, "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "create access token").
			Wrap(err)
	}

	if err := r.tokens.Create(ctx, token); err != nil {
		return nil, "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "persist token").
			With("user_id", userID.String()).
			Wrap(err)
	}

	return token, plaintext, nil
}

// Resolve returns the token whose plaintext is presented.
// Unknown, revoked and expired tokens yield an error wrapping ErrInvalidToken.
func (r *TokenRegistry) Resolve(ctx context.Context, plaintext string) (*AccessToken, error) {
	if plaintext == "" {
		return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	token, err := r.tokens.GetByTokenHash(ctx, HashToken(plaintext))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("TOKEN_RESOLVE_FAILED").
			With("operation", "get token by hash").
			Wrap(err)
	}

	now := r.now()
	if token.IsExpiredAt(now) {
		return nil, oops.Code("AUTH_TOKEN_INVALID").
			With("reason", "expired").
			Wrap(ErrInvalidToken)
	}

	if err := r.tokens.TouchLastUsed(ctx, token.ID, now.UTC()); err != nil {
		r.logger.WarnContext(ctx, "failed to update token last used",
			"token_id", token.ID.String(),
			"error", err)
	} else {
		token.LastUsedAt = now.UTC()
	}

	return token, nil
}

// Revoke deletes a token. Revoking a token that does not exist is a no-op.
func (r *TokenRegistry) Revoke(ctx context.Context, tokenID ulid.ULID) error {
	if err := r.tokens.Delete(ctx, tokenID); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("TOKEN_REVOKE_FAILED").
			With("operation", "delete token").
			With("token_id", tokenID.String()).
			Wrap(err)
	}
	return nil
}

// RevokeAll deletes every token of a user.
func (r *TokenRegistry) RevokeAll(ctx context.Context, userID ulid.ULID) error {
	if err := r.tokens.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("TOKEN_REVOKE_FAILED").
			With("operation", "delete tokens by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// PurgeExpired removes expired tokens and returns how many were deleted.
func (r *TokenRegistry) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := r.tokens.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("TOKEN_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}
