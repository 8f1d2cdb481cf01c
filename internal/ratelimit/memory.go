// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/holomush/holoauth/internal/auth"
)

type window struct {
	count   int
	expires time.Time
}

// MemoryStore counts attempts in process memory. Counters are lost on
// restart and are not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]window), now: time.Now}
}

// Increment records a failure. The window starts with the first failure.
func (s *MemoryStore) Increment(_ context.Context, key string, d time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expires) {
		w = window{expires: now.Add(d)}
	}
	w.count++
	s.windows[key] = w
	return w.count, nil
}

// Get returns the count and remaining time of the current window.
func (s *MemoryStore) Get(_ context.Context, key string) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		return 0, 0, nil
	}
	remaining := w.expires.Sub(s.now())
	if remaining <= 0 {
		delete(s.windows, key)
		return 0, 0, nil
	}
	return w.count, remaining, nil
}

// Reset clears the counter for key.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Sweep drops expired windows and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for key, w := range s.windows {
		if !now.Before(w.expires) {
			delete(s.windows, key)
			n++
		}
	}
	return n
}

var _ auth.AttemptStore = (*MemoryStore)(nil)
