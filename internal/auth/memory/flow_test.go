// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/memory"
	"github.com/holomush/holoauth/pkg/errutil"
)

type captureNotifier struct {
	notices []auth.ResetNotice
}

func (c *captureNotifier) NotifyReset(_ context.Context, n auth.ResetNotice) error {
	c.notices = append(c.notices, n)
	return nil
}

func TestAuthFlow_OverMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	hasher, err := auth.NewArgon2idHasherWithParams(auth.HasherParams{Time: 1, Memory: 64, Threads: 1})
	require.NoError(t, err)
	registry, err := auth.NewTokenRegistry(s.AccessTokens())
	require.NoError(t, err)
	svc, err := auth.NewAuthService(s.Users(), registry, hasher)
	require.NoError(t, err)
	notifier := &captureNotifier{}
	resets, err := auth.NewPasswordResetService(s.Users(), s.PasswordResets(), hasher, s, notifier)
	require.NoError(t, err)

	_, err = svc.Register(ctx, auth.RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, auth.RegisterInput{Name: "Ann2", Email: "ANN@example.com", Password: "secret1"})
	require.ErrorIs(t, err, auth.ErrDuplicateEmail)

	first, err := svc.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "ann@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEqual(t, first.PlainTextToken, second.PlainTextToken)

	id, err := svc.CurrentUser(ctx, first.PlainTextToken)
	require.NoError(t, err)
	assert.Equal(t, "Ann", id.User.Name)

	require.NoError(t, svc.Logout(ctx, id.Token))
	_, err = svc.CurrentUser(ctx, first.PlainTextToken)
	errutil.AssertErrorCode(t, err, "AUTH_UNAUTHORIZED")

	_, err = svc.CurrentUser(ctx, second.PlainTextToken)
	require.NoError(t, err, "logout revokes only the presented token")

	token, err := resets.RequestReset(ctx, "ann@example.com")
	require.NoError(t, err)
	require.Len(t, notifier.notices, 1)
	assert.Equal(t, token, notifier.notices[0].Token)

	in := auth.ResetInput{Token: token, Email: "ann@example.com", Password: "newpass", PasswordConfirmation: "newpass"}
	require.NoError(t, resets.ResetPassword(ctx, in))

	err = resets.ResetPassword(ctx, in)
	errutil.AssertErrorCode(t, err, "RESET_TOKEN_INVALID")

	_, err = svc.Login(ctx, "ann@example.com", "secret1")
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CREDENTIALS")
	_, err = svc.Login(ctx, "ann@example.com", "newpass")
	require.NoError(t, err)
}

type failingUsers struct {
	auth.UserRepository
}

func (failingUsers) UpdatePassword(context.Context, ulid.ULID, string) error {
	return errors.New("disk full")
}

func TestResetPassword_FailedUpdateKeepsToken(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	hasher, err := auth.NewArgon2idHasherWithParams(auth.HasherParams{Time: 1, Memory: 64, Threads: 1})
	require.NoError(t, err)

	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)
	user, err := auth.NewUser("Bo", "bo@example.com", hash)
	require.NoError(t, err)
	require.NoError(t, s.Users().Create(ctx, user))

	broken, err := auth.NewPasswordResetService(failingUsers{s.Users()}, s.PasswordResets(), hasher, s, &captureNotifier{})
	require.NoError(t, err)
	token, err := broken.RequestReset(ctx, "bo@example.com")
	require.NoError(t, err)

	err = broken.ResetPassword(ctx, auth.ResetInput{
		Token: token, Email: "bo@example.com", Password: "newpass", PasswordConfirmation: "newpass",
	})
	errutil.AssertErrorCode(t, err, "RESET_PASSWORD_FAILED")

	_, err = s.PasswordResets().GetByEmail(ctx, "bo@example.com")
	require.NoError(t, err, "reset row must survive a failed transaction")
}
