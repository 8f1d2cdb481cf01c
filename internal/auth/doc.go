// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides the credential and token lifecycle for holoauth.
//
// # Domain Types
//
// Domain types (User, AccessToken, PasswordReset) should be created
// using their respective constructors:
//   - NewUser - creates a User with validated name, email and password hash
//   - NewAccessToken - creates an AccessToken bound to a user
//   - NewPasswordReset - creates a PasswordReset for an email with an expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - register, login, logout, current user resolution
//   - TokenRegistry - bearer token issue, resolve and revoke
//   - PasswordResetService - password reset flow
//
// Input validation runs through declarative Rule lists before any mutation
// and reports failures as a *ValidationError keyed by field name.
package auth
