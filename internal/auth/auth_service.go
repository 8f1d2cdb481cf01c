// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// Messages surfaced to clients.
const (
	MsgInvalidCredentials = "These credentials do not match our records."
	MsgEmailTaken         = "The email has already been taken."
)

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	// NonString lists fields that were submitted as something other than a string.
	NonString []string
}

func (in RegisterInput) fields() map[string]string {
	return map[string]string{"name": in.Name, "email": in.Email, "password": in.Password}
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User           *User
	Token          *AccessToken
	PlainTextToken string
}

// Identity is the authenticated principal of a request.
type Identity struct {
	User  *User
	Token *AccessToken
}

// Service provides authentication operations.
type Service struct {
	users   UserRepository
	tokens  *TokenRegistry
	hasher  PasswordHasher
	limiter *AttemptLimiter
	logger  *slog.Logger
	// dummyHash is verified against when the email is unknown, so those
	// logins take as long as real ones.
	dummyHash string
}

// NewAuthService creates a new Service.
// Recognised options: WithLogger, WithAttemptLimiter.
func NewAuthService(users UserRepository, tokens *TokenRegistry, hasher PasswordHasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token registry is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	params := DefaultHasherParams()
	if p, ok := hasher.(interface{ Params() HasherParams }); ok {
		params = p.Params()
	}

	return &Service{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		limiter:   o.limiter,
		logger:    o.logger,
		dummyHash: unmatchableHash(params),
	}, nil
}

// Register validates the input, hashes the password and creates the user.
// Validation failures, including a taken email, are returned as *ValidationError
// and nothing is written.
func (s *Service) Register(ctx context.Context, in RegisterInput) (created *User, err error) {
	ctx, end := startSpan(ctx, "auth.register")
	defer func() { end(err) }()

	if verr := Validate(RegisterRules, in.fields(), in.NonString...); verr != nil {
		return nil, verr
	}

	_, err = s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, emailTakenError()
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(in.Name, in.Email, hash)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, emailTakenError()
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "persist user").
			Wrap(err)
	}

	return user, nil
}

// FindByEmail returns the user registered with email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err //nolint:wrapcheck // repository errors already carry codes
	}
	return user, nil
}

// Login authenticates a user by email and password and issues an access token.
// Unknown emails and wrong passwords produce the same error.
// Uses constant-time operations to prevent timing-based email enumeration.
func (s *Service) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	ctx, end := startSpan(ctx, "auth.login")
	defer func() { end(err) }()

	if verr := Validate(LoginRules, map[string]string{"email": email, "password": password}); verr != nil {
		return nil, verr
	}

	// Checked before the user lookup so locked registered and unknown emails look alike.
	if s.limiter != nil {
		res, err := s.limiter.Check(ctx, email)
		if err != nil {
			s.logger.WarnContext(ctx, "login throttle check failed", "error", err)
		} else if res.IsLockedOut {
			return nil, oops.Code("AUTH_TOO_MANY_ATTEMPTS").
				With("retry_after", res.LockoutRemaining).
				Errorf("too many login attempts")
		}
	}

	user, lookupErr := s.users.GetByEmail(ctx, email)

	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
		targetHash = s.dummyHash
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil && userExists {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		s.recordFailure(ctx, email)
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("%s", MsgInvalidCredentials)
	}

	if s.limiter != nil {
		if err := s.limiter.RecordSuccess(ctx, email); err != nil {
			s.logger.WarnContext(ctx, "failed to reset login attempts", "error", err)
		}
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, plaintext, err := s.tokens.Issue(ctx, user.ID, DefaultTokenName)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue token").
			Wrap(err)
	}

	return &LoginResult{User: user, Token: token, PlainTextToken: plaintext}, nil
}

// Logout revokes the token the request was authenticated with.
func (s *Service) Logout(ctx context.Context, token *AccessToken) error {
	if token == nil {
		return oops.Code("AUTH_UNAUTHORIZED").Errorf("unauthenticated")
	}
	if err := s.tokens.Revoke(ctx, token.ID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("token_id", token.ID.String()).
			Wrap(err)
	}
	return nil
}

// CurrentUser resolves a plaintext bearer token to the user it was issued to.
func (s *Service) CurrentUser(ctx context.Context, plaintext string) (*Identity, error) {
	token, err := s.tokens.Resolve(ctx, plaintext)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, oops.Code("AUTH_UNAUTHORIZED").Errorf("unauthenticated")
		}
		return nil, oops.Code("AUTH_CURRENT_USER_FAILED").
			With("operation", "resolve token").
			Wrap(err)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_UNAUTHORIZED").
				With("user_id", token.UserID.String()).
				Errorf("unauthenticated")
		}
		return nil, oops.Code("AUTH_CURRENT_USER_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	return &Identity{User: user, Token: token}, nil
}

func (s *Service) recordFailure(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, email); err != nil {
		s.logger.WarnContext(ctx, "failed to record login failure", "error", err)
	}
}

// upgradeHash rehashes a password stored with an outdated algorithm or cost.
// Login succeeds regardless of the outcome.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to rehash password", "user_id", user.ID.String(), "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
		s.logger.WarnContext(ctx, "failed to store upgraded password hash", "user_id", user.ID.String(), "error", err)
		return
	}
	user.PasswordHash = newHash
}

func emailTakenError() *ValidationError {
	return NewValidationError("email", MsgEmailTaken).WithCause(ErrDuplicateEmail)
}
