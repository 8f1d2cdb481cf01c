// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// AccessTokenRepository implements auth.AccessTokenRepository in memory.
type AccessTokenRepository struct {
	s *Store
}

// Create stores a new access token. The owning user must exist.
func (r *AccessTokenRepository) Create(ctx context.Context, token *auth.AccessToken) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.users[token.UserID]; !ok {
			return oops.Code("TOKEN_CREATE_FAILED").
				With("user_id", token.UserID.String()).
				Errorf("user does not exist")
		}
		if _, dup := r.s.tokenHashes[token.TokenHash]; dup {
			return oops.Code("TOKEN_CREATE_FAILED").Errorf("token hash already exists")
		}
		r.s.tokens[token.ID] = cloneToken(*token)
		r.s.tokenHashes[token.TokenHash] = token.ID
		return nil
	})
}

// GetByTokenHash retrieves a token by the hash of its plaintext.
func (r *AccessTokenRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.AccessToken, error) {
	var token auth.AccessToken
	err := r.s.read(func() error {
		id, ok := r.s.tokenHashes[tokenHash]
		if !ok {
			return oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
		}
		token = cloneToken(r.s.tokens[id])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// GetByUser retrieves all tokens for a user, newest first.
func (r *AccessTokenRepository) GetByUser(_ context.Context, userID ulid.ULID) ([]*auth.AccessToken, error) {
	var tokens []*auth.AccessToken
	_ = r.s.read(func() error {
		for _, tok := range r.s.tokens {
			if tok.UserID == userID {
				t := cloneToken(tok)
				tokens = append(tokens, &t)
			}
		}
		return nil
	})
	slices.SortFunc(tokens, func(a, b *auth.AccessToken) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return tokens, nil
}

// TouchLastUsed updates the LastUsedAt timestamp for a token.
func (r *AccessTokenRepository) TouchLastUsed(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.s.write(ctx, func() error {
		tok, ok := r.s.tokens[id]
		if !ok {
			return oops.Code("TOKEN_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
		}
		tok.LastUsedAt = at
		r.s.tokens[id] = tok
		return nil
	})
}

// Delete removes a token by ID.
func (r *AccessTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return r.s.write(ctx, func() error {
		tok, ok := r.s.tokens[id]
		if !ok {
			return oops.Code("TOKEN_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
		}
		delete(r.s.tokens, id)
		delete(r.s.tokenHashes, tok.TokenHash)
		return nil
	})
}

// DeleteByUser removes all tokens for a user.
func (r *AccessTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	return r.s.write(ctx, func() error {
		for id, tok := range r.s.tokens {
			if tok.UserID == userID {
				delete(r.s.tokens, id)
				delete(r.s.tokenHashes, tok.TokenHash)
			}
		}
		return nil
	})
}

// DeleteExpired removes expired tokens. Tokens without expiry are kept.
func (r *AccessTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	err := r.s.write(ctx, func() error {
		now := r.s.now()
		for id, tok := range r.s.tokens {
			if tok.IsExpiredAt(now) {
				delete(r.s.tokens, id)
				delete(r.s.tokenHashes, tok.TokenHash)
				n++
			}
		}
		return nil
	})
	return n, err
}

// cloneToken copies t so callers never share the ExpiresAt pointer with the store.
func cloneToken(t auth.AccessToken) auth.AccessToken {
	if t.ExpiresAt != nil {
		exp := *t.ExpiresAt
		t.ExpiresAt = &exp
	}
	return t
}

var _ auth.AccessTokenRepository = (*AccessTokenRepository)(nil)
