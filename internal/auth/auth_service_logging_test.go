// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/mocks"
)

// logEntry represents a parsed JSON log entry.
type logEntry struct {
	Level   string `json:"level"`
	Msg     string `json:"msg"`
	Error   string `json:"error"`
	UserID  string `json:"user_id"`
	TokenID string `json:"token_id"`
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func parseLogEntries(t *testing.T, buf *bytes.Buffer) []logEntry {
	t.Helper()
	var entries []logEntry
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var e logEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestService_Login_LogsHashUpgradeFailure(t *testing.T) {
	ctx := context.Background()
	logger, buf := captureLogger()

	users := mocks.NewMockUserRepository(t)
	tokens := mocks.NewMockAccessTokenRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	registry, err := auth.NewTokenRegistry(tokens, auth.WithLogger(logger))
	require.NoError(t, err)
	svc, err := auth.NewAuthService(users, registry, hasher, auth.WithLogger(logger))
	require.NoError(t, err)

	user := testUser()
	users.On("GetByEmail", ctx, user.Email).Return(user, nil)
	hasher.On("Verify", "123456", storedHash).Return(true, nil)
	hasher.On("NeedsUpgrade", storedHash).Return(true)
	hasher.On("Hash", "123456").Return("$argon2id$new", nil)
	users.On("UpdatePassword", ctx, user.ID, "$argon2id$new").Return(errors.New("database connection lost"))
	tokens.On("Create", ctx, mock.AnythingOfType("*auth.AccessToken")).Return(nil)

	_, err = svc.Login(ctx, user.Email, "123456")
	require.NoError(t, err)

	entries := parseLogEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "failed to store upgraded password hash", entries[0].Msg)
	assert.Equal(t, user.ID.String(), entries[0].UserID)
	assert.Contains(t, entries[0].Error, "database connection lost")
}

func TestTokenRegistry_Resolve_LogsTouchFailure(t *testing.T) {
	ctx := context.Background()
	logger, buf := captureLogger()

	tokens := mocks.NewMockAccessTokenRepository(t)
	registry, err := auth.NewTokenRegistry(tokens, auth.WithLogger(logger))
	require.NoError(t, err)

	tok, err := auth.NewAccessToken(testUser().ID, "api", auth.HashToken("plain"), nil)
	require.NoError(t, err)
	tokens.On("GetByTokenHash", ctx, tok.TokenHash).Return(tok, nil)
	tokens.On("TouchLastUsed", ctx, tok.ID, mock.AnythingOfType("time.Time")).Return(errors.New("write timeout"))

	got, err := registry.Resolve(ctx, "plain")
	require.NoError(t, err, "touch failures must not fail resolution")
	assert.Equal(t, tok.ID, got.ID)

	entries := parseLogEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, tok.ID.String(), entries[0].TokenID)
	assert.Contains(t, entries[0].Error, "write timeout")
}

func TestService_Login_LogsLimiterFailure(t *testing.T) {
	ctx := context.Background()
	logger, buf := captureLogger()

	store := mocks.NewMockAttemptStore(t)
	store.On("Get", ctx, "login:nobody@mail.com").Return(0, 0*time.Second, errors.New("redis down"))
	store.On("Increment", ctx, "login:nobody@mail.com", auth.DefaultLockoutDuration).Return(0, errors.New("redis down"))
	limiter, err := auth.NewAttemptLimiter(store, auth.DefaultLockoutPolicy())
	require.NoError(t, err)

	users := mocks.NewMockUserRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	registry, err := auth.NewTokenRegistry(mocks.NewMockAccessTokenRepository(t))
	require.NoError(t, err)
	svc, err := auth.NewAuthService(users, registry, hasher, auth.WithLogger(logger), auth.WithAttemptLimiter(limiter))
	require.NoError(t, err)

	users.On("GetByEmail", ctx, "nobody@mail.com").Return(nil, auth.ErrNotFound)
	hasher.On("Verify", "123456", mock.AnythingOfType("string")).Return(false, nil)

	_, err = svc.Login(ctx, "nobody@mail.com", "123456")
	require.Error(t, err)

	entries := parseLogEntries(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "login throttle check failed", entries[0].Msg)
	assert.Equal(t, "failed to record login failure", entries[1].Msg)
}
