// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/postgres"
	"github.com/holomush/holoauth/pkg/errutil"
)

func createTestUser(ctx context.Context, t *testing.T, email string) *auth.User {
	t.Helper()
	user, err := auth.NewUser("Test User", email, "$argon2id$placeholder")
	require.NoError(t, err)
	require.NoError(t, postgres.NewUserRepository(testPool).Create(ctx, user))
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID.String())
	})
	return user
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	t.Run("lookup ignores email case", func(t *testing.T) {
		user := createTestUser(ctx, t, "Mixed.Case@Example.com")

		got, err := repo.GetByEmail(ctx, "  mixed.case@EXAMPLE.com ")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, "Mixed.Case@Example.com", got.Email)
	})

	t.Run("duplicate email in other case is rejected", func(t *testing.T) {
		createTestUser(ctx, t, "dup@example.com")

		other, err := auth.NewUser("Other", "DUP@example.com", "hash")
		require.NoError(t, err)
		err = repo.Create(ctx, other)
		require.ErrorIs(t, err, auth.ErrDuplicateEmail)
		errutil.AssertErrorCode(t, err, "AUTH_EMAIL_TAKEN")
	})

	t.Run("concurrent registrations create exactly one user", func(t *testing.T) {
		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			created   int
			duplicate int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				u, err := auth.NewUser("Racer", "race@example.com", "hash")
				if err != nil {
					return
				}
				err = repo.Create(ctx, u)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, auth.ErrDuplicateEmail):
					duplicate++
				}
			}()
		}
		wg.Wait()
		t.Cleanup(func() {
			_, _ = testPool.Exec(ctx, `DELETE FROM users WHERE lower(email) = 'race@example.com'`)
		})

		assert.Equal(t, 1, created)
		assert.Equal(t, workers-1, duplicate)
	})

	t.Run("update password bumps updated_at", func(t *testing.T) {
		user := createTestUser(ctx, t, "update@example.com")
		require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new-hash"))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.PasswordHash)
		assert.False(t, got.UpdatedAt.Before(user.UpdatedAt))
	})
}

func TestAccessTokenRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccessTokenRepository(testPool)
	user := createTestUser(ctx, t, "tokens@example.com")

	_, hash, err := auth.GenerateToken()
	require.NoError(t, err)
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	tok, err := auth.NewAccessToken(user.ID, "laptop", hash, &expires)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tok))

	got, err := repo.GetByTokenHash(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, expires.Equal(*got.ExpiresAt))

	_, hash2, err := auth.GenerateToken()
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour).UTC()
	stale, err := auth.NewAccessToken(user.ID, "", hash2, &past)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, stale))

	n, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	tokens, err := repo.GetByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, tok.ID, tokens[0].ID)

	t.Run("deleting the user cascades", func(t *testing.T) {
		require.NoError(t, postgres.NewUserRepository(testPool).Delete(ctx, user.ID))
		_, err := repo.GetByTokenHash(ctx, hash)
		require.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestPasswordResetRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewPasswordResetRepository(testPool)

	first, err := auth.NewPasswordReset("Reset@Example.com", auth.HashToken("first"), time.Now().Add(time.Hour).UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, first))
	t.Cleanup(func() {
		_, _ = testPool.Exec(ctx, `DELETE FROM password_resets WHERE email = 'reset@example.com'`)
	})

	second, err := auth.NewPasswordReset("reset@example.com", auth.HashToken("second"), time.Now().Add(time.Hour).UTC())
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, second))

	got, err := repo.GetByEmail(ctx, "RESET@example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.HashToken("second"), got.TokenHash, "new request replaces the old token")

	_, err = repo.GetByTokenHash(ctx, auth.HashToken("first"))
	require.ErrorIs(t, err, auth.ErrNotFound)

	t.Run("consumption is single use", func(t *testing.T) {
		tx := postgres.NewTransactor(testPool)
		var wg sync.WaitGroup
		results := make(chan error, 4)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- tx.InTransaction(ctx, func(ctx context.Context) error {
					return repo.Delete(ctx, "reset@example.com", auth.HashToken("second"))
				})
			}()
		}
		wg.Wait()
		close(results)

		var ok, notFound int
		for err := range results {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, auth.ErrNotFound):
				notFound++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 3, notFound)
	})
}

func TestTransactor_Integration_RollsBack(t *testing.T) {
	ctx := context.Background()
	users := postgres.NewUserRepository(testPool)
	user := createTestUser(ctx, t, "rollback@example.com")

	boom := errors.New("boom")
	err := postgres.NewTransactor(testPool).InTransaction(ctx, func(ctx context.Context) error {
		if err := users.UpdatePassword(ctx, user.ID, "changed"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.PasswordHash, got.PasswordHash)
}
