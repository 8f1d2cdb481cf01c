// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/auth"
)

func TestValidate_Register(t *testing.T) {
	valid := map[string]string{"name": "Test User", "email": "testing@mail.com", "password": "123456"}

	t.Run("valid input", func(t *testing.T) {
		assert.Nil(t, auth.Validate(auth.RegisterRules, valid))
	})

	tests := []struct {
		name  string
		field string
		value string
		want  string
	}{
		{"missing name", "name", "", "The name field is required."},
		{"blank name", "name", "   ", "The name field is required."},
		{"long name", "name", strings.Repeat("n", 256), "The name must not be greater than 255 characters."},
		{"missing email", "email", "", "The email field is required."},
		{"bad email", "email", "not-an-email", "The email must be a valid email address."},
		{"display name email", "email", "Bob <bob@example.com>", "The email must be a valid email address."},
		{"short password", "password", "12345", "The password must be at least 6 characters."},
		{"missing password", "password", "", "The password field is required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := map[string]string{}
			for k, v := range valid {
				input[k] = v
			}
			input[tt.field] = tt.value

			verr := auth.Validate(auth.RegisterRules, input)
			require.NotNil(t, verr)
			assert.Equal(t, tt.want, verr.First(tt.field))
			assert.Len(t, verr.Fields, 1)
		})
	}

	t.Run("exactly 255 character name passes", func(t *testing.T) {
		input := map[string]string{"name": strings.Repeat("n", 255), "email": "a@b.co", "password": "123456"}
		assert.Nil(t, auth.Validate(auth.RegisterRules, input))
	})
}

func TestValidate_StringRule(t *testing.T) {
	input := map[string]string{"name": "123", "email": "int@example.com", "password": "secret1"}

	t.Run("numeric name submitted as a number", func(t *testing.T) {
		verr := auth.Validate(auth.RegisterRules, input, "name")
		require.NotNil(t, verr)
		assert.Equal(t, "The name must be a string.", verr.First("name"))
		assert.Len(t, verr.Fields, 1)
	})

	t.Run("same text submitted as a string passes", func(t *testing.T) {
		assert.Nil(t, auth.Validate(auth.RegisterRules, input))
	})

	t.Run("missing value reports required first", func(t *testing.T) {
		verr := auth.Validate(auth.LoginRules, map[string]string{"email": "a@b.co"}, "password")
		require.NotNil(t, verr)
		assert.Equal(t, "The password field is required.", verr.First("password"))
	})

	t.Run("fields without a string rule ignore the type", func(t *testing.T) {
		reset := map[string]string{
			"token": "tok", "email": "a@b.co", "password": "secret1", "password_confirmation": "secret1",
		}
		assert.Nil(t, auth.Validate(auth.ResetPasswordRules, reset, "password_confirmation"))
	})
}

func TestValidate_ResetConfirmation(t *testing.T) {
	input := map[string]string{
		"token":                 "tok",
		"email":                 "a@b.co",
		"password":              "secret1",
		"password_confirmation": "secret2",
	}
	verr := auth.Validate(auth.ResetPasswordRules, input)
	require.NotNil(t, verr)
	assert.Equal(t, "The password confirmation does not match.", verr.First("password"))

	input["password_confirmation"] = "secret1"
	assert.Nil(t, auth.Validate(auth.ResetPasswordRules, input))

	delete(input, "password_confirmation")
	verr = auth.Validate(auth.ResetPasswordRules, input)
	require.NotNil(t, verr)
	assert.Equal(t, "The password confirmation field is required.", verr.First("password_confirmation"))
}

func TestValidationError_Error(t *testing.T) {
	t.Run("single message", func(t *testing.T) {
		verr := auth.NewValidationError("email", "The email field is required.")
		assert.Equal(t, "The email field is required.", verr.Error())
	})

	t.Run("first message follows rule order", func(t *testing.T) {
		verr := auth.Validate(auth.RegisterRules, map[string]string{})
		require.NotNil(t, verr)
		assert.Equal(t, "The name field is required. (and 2 more errors)", verr.Error())
	})

	t.Run("two messages", func(t *testing.T) {
		verr := auth.Validate(auth.LoginRules, map[string]string{})
		require.NotNil(t, verr)
		assert.Equal(t, "The email field is required. (and 1 more error)", verr.Error())
	})

	t.Run("cause is reachable", func(t *testing.T) {
		verr := auth.NewValidationError("email", "taken").WithCause(auth.ErrDuplicateEmail)
		assert.ErrorIs(t, verr, auth.ErrDuplicateEmail)
		assert.Equal(t, "VALIDATION_FAILED", verr.Code())

		var target *auth.ValidationError
		assert.True(t, errors.As(error(verr), &target))
	})
}
