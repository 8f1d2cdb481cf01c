// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository in memory.
type PasswordResetRepository struct {
	s *Store
}

// Put stores a reset for the email, replacing any outstanding one.
func (r *PasswordResetRepository) Put(ctx context.Context, reset *auth.PasswordReset) error {
	return r.s.write(ctx, func() error {
		stored := *reset
		stored.Email = auth.EmailKey(reset.Email)
		r.s.resets[stored.Email] = stored
		return nil
	})
}

// GetByEmail retrieves the outstanding reset for an email.
func (r *PasswordResetRepository) GetByEmail(_ context.Context, email string) (*auth.PasswordReset, error) {
	var reset auth.PasswordReset
	err := r.s.read(func() error {
		got, ok := r.s.resets[auth.EmailKey(email)]
		if !ok {
			return oops.Code("RESET_NOT_FOUND").With("email", auth.EmailKey(email)).Wrap(auth.ErrNotFound)
		}
		reset = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &reset, nil
}

// GetByTokenHash retrieves a reset by its token hash.
func (r *PasswordResetRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.PasswordReset, error) {
	var reset auth.PasswordReset
	err := r.s.read(func() error {
		for _, got := range r.s.resets {
			if got.TokenHash == tokenHash {
				reset = got
				return nil
			}
		}
		return oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &reset, nil
}

// Delete removes the reset for email if it still carries tokenHash.
func (r *PasswordResetRepository) Delete(ctx context.Context, email, tokenHash string) error {
	key := auth.EmailKey(email)
	return r.s.write(ctx, func() error {
		got, ok := r.s.resets[key]
		if !ok || got.TokenHash != tokenHash {
			return oops.Code("RESET_NOT_FOUND").With("email", key).Wrap(auth.ErrNotFound)
		}
		delete(r.s.resets, key)
		return nil
	})
}

// DeleteExpired removes expired resets and returns the count.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	err := r.s.write(ctx, func() error {
		now := r.s.now()
		for key, reset := range r.s.resets {
			if reset.IsExpiredAt(now) {
				delete(r.s.resets, key)
				n++
			}
		}
		return nil
	})
	return n, err
}

var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
