// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// Rate limiting configuration.
const (
	// DefaultLockoutDuration is both the failure counting window and the time
	// an email stays locked once the threshold is reached.
	DefaultLockoutDuration = 15 * time.Minute

	// DefaultLockoutThreshold is the number of failures that triggers a lockout.
	DefaultLockoutThreshold = 7
)

// LockoutPolicy configures login throttling.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy returns the default throttling policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

// AttemptStore counts failures per key inside an expiring window.
type AttemptStore interface {
	// Increment records a failure and returns the count in the current window.
	// The window starts with the first failure and lasts for window.
	Increment(ctx context.Context, key string, window time.Duration) (int, error)

	// Get returns the failure count and the time left in the current window.
	Get(ctx context.Context, key string) (count int, remaining time.Duration, err error)

	// Reset clears the failures for key.
	Reset(ctx context.Context, key string) error
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	// IsLockedOut indicates the email is temporarily locked.
	IsLockedOut bool

	// LockoutRemaining is the time until the lockout expires.
	LockoutRemaining time.Duration
}

// CheckFailures evaluates the rate limit state for a failure count.
func CheckFailures(policy LockoutPolicy, failures int, remaining time.Duration) RateLimitResult {
	if policy.Threshold <= 0 || failures < policy.Threshold {
		return RateLimitResult{}
	}
	if remaining <= 0 {
		remaining = policy.Duration
	}
	return RateLimitResult{IsLockedOut: true, LockoutRemaining: remaining}
}

// AttemptLimiter throttles login attempts per email. Keys are derived from
// EmailKey so registered and unknown emails are treated identically.
type AttemptLimiter struct {
	store  AttemptStore
	policy LockoutPolicy
}

// NewAttemptLimiter creates an AttemptLimiter.
func NewAttemptLimiter(store AttemptStore, policy LockoutPolicy) (*AttemptLimiter, error) {
	if store == nil {
		return nil, oops.Code("LIMITER_INVALID_CONFIG").Errorf("attempt store is required")
	}
	if policy.Threshold <= 0 {
		return nil, oops.Code("LIMITER_INVALID_CONFIG").
			With("threshold", policy.Threshold).
			Errorf("lockout threshold must be positive")
	}
	if policy.Duration <= 0 {
		return nil, oops.Code("LIMITER_INVALID_CONFIG").
			With("duration", policy.Duration.String()).
			Errorf("lockout duration must be positive")
	}
	return &AttemptLimiter{store: store, policy: policy}, nil
}

// Check reports whether email is currently locked out.
func (l *AttemptLimiter) Check(ctx context.Context, email string) (RateLimitResult, error) {
	count, remaining, err := l.store.Get(ctx, limiterKey(email))
	if err != nil {
		return RateLimitResult{}, oops.Code("LIMITER_CHECK_FAILED").
			With("operation", "get attempts").
			Wrap(err)
	}
	return CheckFailures(l.policy, count, remaining), nil
}

// RecordFailure counts a failed attempt for email.
func (l *AttemptLimiter) RecordFailure(ctx context.Context, email string) error {
	if _, err := l.store.Increment(ctx, limiterKey(email), l.policy.Duration); err != nil {
		return oops.Code("LIMITER_RECORD_FAILED").
			With("operation", "increment attempts").
			Wrap(err)
	}
	return nil
}

// RecordSuccess clears the failure counter for email.
func (l *AttemptLimiter) RecordSuccess(ctx context.Context, email string) error {
	if err := l.store.Reset(ctx, limiterKey(email)); err != nil {
		return oops.Code("LIMITER_RESET_FAILED").
			With("operation", "reset attempts").
			Wrap(err)
	}
	return nil
}

func limiterKey(email string) string {
	return "login:" + EmailKey(email)
}
