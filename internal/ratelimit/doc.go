// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package ratelimit provides auth.AttemptStore implementations used for
// login throttling: an in-process store and a Redis-backed store shared by
// every API instance.
package ratelimit
