// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// UserRepository implements auth.UserRepository in memory.
type UserRepository struct {
	s *Store
}

// Create stores a new user. The email check and insert happen under one lock.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	key := auth.EmailKey(user.Email)
	return r.s.write(ctx, func() error {
		if _, taken := r.s.emails[key]; taken {
			return oops.Code("AUTH_EMAIL_TAKEN").
				With("email", user.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		r.s.users[user.ID] = *user
		r.s.emails[key] = user.ID
		return nil
	})
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	var user auth.User
	err := r.s.read(func() error {
		u, ok := r.s.users[id]
		if !ok {
			return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	var user auth.User
	err := r.s.read(func() error {
		id, ok := r.s.emails[auth.EmailKey(email)]
		if !ok {
			return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
		}
		user = r.s.users[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePassword replaces the password hash and bumps UpdatedAt.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.s.write(ctx, func() error {
		u, ok := r.s.users[id]
		if !ok {
			return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
		}
		u.PasswordHash = passwordHash
		u.UpdatedAt = r.s.now().UTC()
		r.s.users[id] = u
		return nil
	})
}

// Delete removes a user together with its access tokens.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return r.s.write(ctx, func() error {
		u, ok := r.s.users[id]
		if !ok {
			return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
		}
		delete(r.s.users, id)
		delete(r.s.emails, auth.EmailKey(u.Email))
		for tid, tok := range r.s.tokens {
			if tok.UserID == id {
				delete(r.s.tokens, tid)
				delete(r.s.tokenHashes, tok.TokenHash)
			}
		}
		return nil
	})
}

var _ auth.UserRepository = (*UserRepository)(nil)
