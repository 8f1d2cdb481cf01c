// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Option configures the services in this package.
type Option func(*options) error

type options struct {
	logger   *slog.Logger
	limiter  *AttemptLimiter
	tokenTTL time.Duration
	resetTTL time.Duration
	now      func() time.Time
}

func defaultOptions() *options {
	return &options{
		logger:   slog.Default(),
		tokenTTL: DefaultAccessTokenTTL,
		resetTTL: DefaultResetTokenTTL,
		now:      time.Now,
	}
}

func applyOptions(opts []Option) (*options, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
		}
		o.logger = logger
		return nil
	}
}

// WithAttemptLimiter enables login throttling.
func WithAttemptLimiter(limiter *AttemptLimiter) Option {
	return func(o *options) error {
		o.limiter = limiter
		return nil
	}
}

// WithTokenTTL sets the access token lifetime. Zero disables expiry.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *options) error {
		if ttl < 0 {
			return oops.Code("AUTH_INVALID_CONFIG").With("token_ttl", ttl.String()).Errorf("token ttl cannot be negative")
		}
		o.tokenTTL = ttl
		return nil
	}
}

// WithResetTTL sets how long password reset tokens remain valid.
func WithResetTTL(ttl time.Duration) Option {
	return func(o *options) error {
		if ttl <= 0 {
			return oops.Code("AUTH_INVALID_CONFIG").With("reset_ttl", ttl.String()).Errorf("reset ttl must be positive")
		}
		o.resetTTL = ttl
		return nil
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		if now == nil {
			return oops.Code("AUTH_INVALID_CONFIG").Errorf("clock is required")
		}
		o.now = now
		return nil
	}
}
