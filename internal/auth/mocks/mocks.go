// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mocks provides testify mocks for the auth package interfaces.
// Each constructor registers AssertExpectations as a test cleanup.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/holoauth/internal/auth"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockUserRepository is a mock of auth.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a MockUserRepository bound to t.
func NewMockUserRepository(t testingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

// MockAccessTokenRepository is a mock of auth.AccessTokenRepository.
type MockAccessTokenRepository struct {
	mock.Mock
}

// NewMockAccessTokenRepository creates a MockAccessTokenRepository bound to t.
func NewMockAccessTokenRepository(t testingT) *MockAccessTokenRepository {
	m := &MockAccessTokenRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccessTokenRepository) Create(ctx context.Context, token *auth.AccessToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockAccessTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.AccessToken, error) {
	args := m.Called(ctx, tokenHash)
	token, _ := args.Get(0).(*auth.AccessToken)
	return token, args.Error(1)
}

func (m *MockAccessTokenRepository) GetByUser(ctx context.Context, userID ulid.ULID) ([]*auth.AccessToken, error) {
	args := m.Called(ctx, userID)
	tokens, _ := args.Get(0).([]*auth.AccessToken)
	return tokens, args.Error(1)
}

func (m *MockAccessTokenRepository) TouchLastUsed(ctx context.Context, id ulid.ULID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockAccessTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAccessTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockAccessTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockPasswordResetRepository is a mock of auth.PasswordResetRepository.
type MockPasswordResetRepository struct {
	mock.Mock
}

// NewMockPasswordResetRepository creates a MockPasswordResetRepository bound to t.
func NewMockPasswordResetRepository(t testingT) *MockPasswordResetRepository {
	m := &MockPasswordResetRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordResetRepository) Put(ctx context.Context, reset *auth.PasswordReset) error {
	return m.Called(ctx, reset).Error(0)
}

func (m *MockPasswordResetRepository) GetByEmail(ctx context.Context, email string) (*auth.PasswordReset, error) {
	args := m.Called(ctx, email)
	reset, _ := args.Get(0).(*auth.PasswordReset)
	return reset, args.Error(1)
}

func (m *MockPasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	args := m.Called(ctx, tokenHash)
	reset, _ := args.Get(0).(*auth.PasswordReset)
	return reset, args.Error(1)
}

func (m *MockPasswordResetRepository) Delete(ctx context.Context, email, tokenHash string) error {
	return m.Called(ctx, email, tokenHash).Error(0)
}

func (m *MockPasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher bound to t.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockResetNotifier is a mock of auth.ResetNotifier.
type MockResetNotifier struct {
	mock.Mock
}

// NewMockResetNotifier creates a MockResetNotifier bound to t.
func NewMockResetNotifier(t testingT) *MockResetNotifier {
	m := &MockResetNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockResetNotifier) NotifyReset(ctx context.Context, notice auth.ResetNotice) error {
	return m.Called(ctx, notice).Error(0)
}

// MockAttemptStore is a mock of auth.AttemptStore.
type MockAttemptStore struct {
	mock.Mock
}

// NewMockAttemptStore creates a MockAttemptStore bound to t.
func NewMockAttemptStore(t testingT) *MockAttemptStore {
	m := &MockAttemptStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAttemptStore) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	args := m.Called(ctx, key, window)
	return args.Int(0), args.Error(1)
}

func (m *MockAttemptStore) Get(ctx context.Context, key string) (int, time.Duration, error) {
	args := m.Called(ctx, key)
	remaining, _ := args.Get(1).(time.Duration)
	return args.Int(0), remaining, args.Error(2)
}

func (m *MockAttemptStore) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// PassthroughTransactor runs callbacks directly without a transaction.
type PassthroughTransactor struct{}

// InTransaction calls fn with ctx.
func (PassthroughTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	_ auth.UserRepository          = (*MockUserRepository)(nil)
	_ auth.AccessTokenRepository   = (*MockAccessTokenRepository)(nil)
	_ auth.PasswordResetRepository = (*MockPasswordResetRepository)(nil)
	_ auth.PasswordHasher          = (*MockPasswordHasher)(nil)
	_ auth.ResetNotifier           = (*MockResetNotifier)(nil)
	_ auth.AttemptStore            = (*MockAttemptStore)(nil)
	_ auth.Transactor              = PassthroughTransactor{}
)
