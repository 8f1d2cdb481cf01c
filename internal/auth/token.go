// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Access token configuration.
const (
	TokenBytes            = 32             // 32 bytes = 64 hex chars
	DefaultAccessTokenTTL = 24 * time.Hour // 0 disables expiry
	DefaultTokenName      = "api"
)

// AccessToken is a bearer credential issued at login. Only the SHA-256 of the
// plaintext is stored; the plaintext is returned to the client once.
type AccessToken struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	Name       string
	TokenHash  string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  *time.Time // nil means the token never expires
}

// NewAccessToken creates a validated AccessToken instance.
// expiresAt is optional; nil issues a token without expiry.
func NewAccessToken(userID ulid.ULID, name, tokenHash string, expiresAt *time.Time) (*AccessToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("TOKEN_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt != nil && expiresAt.IsZero() {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").Errorf("expiry time cannot be zero when provided")
	}
	if name == "" {
		name = DefaultTokenName
	}

	now := time.Now().UTC()
	return &AccessToken{
		ID:         ulid.Make(),
		UserID:     userID,
		Name:       name,
		TokenHash:  tokenHash,
		CreatedAt:  now,
		LastUsedAt: now,
		ExpiresAt:  expiresAt,
	}, nil
}

// IsExpired returns true if the token has expired.
func (t *AccessToken) IsExpired() bool {
	return t.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the token would be expired at the given time.
func (t *AccessToken) IsExpiredAt(at time.Time) bool {
	return t.ExpiresAt != nil && at.After(*t.ExpiresAt)
}

// GenerateToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is sent to the client; the hash is stored in the database.
func GenerateToken() (token, hash string, err error) {
	tokenBytes := make([]byte, TokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	hash = HashToken(token)

	return token, hash, nil
}

// HashToken computes the SHA256 hash of a token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyToken checks if the plaintext token matches the stored hash
// in constant time.
func VerifyToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// AccessTokenRepository manages access token persistence.
type AccessTokenRepository interface {
	// Create stores a new access token.
	Create(ctx context.Context, token *AccessToken) error

	// GetByTokenHash retrieves a token by the hash of its plaintext.
	GetByTokenHash(ctx context.Context, tokenHash string) (*AccessToken, error)

	// GetByUser retrieves all tokens for a user, newest first.
	GetByUser(ctx context.Context, userID ulid.ULID) ([]*AccessToken, error)

	// TouchLastUsed updates the LastUsedAt timestamp for a token.
	TouchLastUsed(ctx context.Context, id ulid.ULID, at time.Time) error

	// Delete removes a token by ID. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes all tokens for a user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes all expired tokens and returns the count
	// of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}
