// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process implementations of the auth
// repositories. It backs the "memory" store driver and end-to-end tests.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/holoauth/internal/auth"
)

// Store holds users, access tokens and password resets behind one lock.
// Mutations are serialized with open transactions so a rollback never
// discards writes made outside it.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	users       map[ulid.ULID]auth.User
	emails      map[string]ulid.ULID // EmailKey -> user id
	tokens      map[ulid.ULID]auth.AccessToken
	tokenHashes map[string]ulid.ULID
	resets      map[string]auth.PasswordReset // EmailKey -> reset

	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:       make(map[ulid.ULID]auth.User),
		emails:      make(map[string]ulid.ULID),
		tokens:      make(map[ulid.ULID]auth.AccessToken),
		tokenHashes: make(map[string]ulid.ULID),
		resets:      make(map[string]auth.PasswordReset),
		now:         time.Now,
	}
}

// Users returns a UserRepository over the store.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// AccessTokens returns an AccessTokenRepository over the store.
func (s *Store) AccessTokens() *AccessTokenRepository { return &AccessTokenRepository{s: s} }

// PasswordResets returns a PasswordResetRepository over the store.
func (s *Store) PasswordResets() *PasswordResetRepository { return &PasswordResetRepository{s: s} }

type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*Store)
	return ok
}

// write runs fn under the write lock. Outside a transaction it also waits
// for any open transaction to finish.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) read(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

type snapshot struct {
	users       map[ulid.ULID]auth.User
	emails      map[string]ulid.ULID
	tokens      map[ulid.ULID]auth.AccessToken
	tokenHashes map[string]ulid.ULID
	resets      map[string]auth.PasswordReset
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		users:       maps.Clone(s.users),
		emails:      maps.Clone(s.emails),
		tokens:      maps.Clone(s.tokens),
		tokenHashes: maps.Clone(s.tokenHashes),
		resets:      maps.Clone(s.resets),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.emails = snap.emails
	s.tokens = snap.tokens
	s.tokenHashes = snap.tokenHashes
	s.resets = snap.resets
}

// InTransaction runs fn with exclusive write access. If fn fails, every
// change it made is rolled back and fn's error is returned as is.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

var _ auth.Transactor = (*Store)(nil)
