// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"
)

// Rule declares the constraints for one input field. Rules are evaluated in
// order and the first failing constraint per field is reported.
type Rule struct {
	Field     string
	Required  bool
	String    bool // value must have been submitted as a string
	Email     bool
	Confirmed bool // field must equal "<field>_confirmation"
	Min       int  // minimum length in characters, 0 = unchecked
	Max       int  // maximum length in characters, 0 = unchecked
}

// Per-operation constraint lists.
var (
	RegisterRules = []Rule{
		{Field: "name", Required: true, String: true, Max: MaxNameLength},
		{Field: "email", Required: true, String: true, Email: true, Max: MaxEmailLength},
		{Field: "password", Required: true, String: true, Min: MinPasswordLength},
	}

	LoginRules = []Rule{
		{Field: "email", Required: true, String: true, Email: true},
		{Field: "password", Required: true, String: true},
	}

	ForgotPasswordRules = []Rule{
		{Field: "email", Required: true, String: true, Email: true},
	}

	ResetPasswordRules = []Rule{
		{Field: "token", Required: true, String: true},
		{Field: "email", Required: true, String: true, Email: true},
		{Field: "password", Required: true, String: true, Min: MinPasswordLength, Confirmed: true},
		{Field: "password_confirmation", Required: true},
	}
)

// ValidationError maps field names to human-readable messages.
type ValidationError struct {
	Fields map[string][]string
	order  []string
	cause  error
}

// NewValidationError creates a ValidationError with a single message.
func NewValidationError(field, message string) *ValidationError {
	e := &ValidationError{}
	e.Add(field, message)
	return e
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.order = append(e.order, field)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// WithCause attaches an underlying error reachable through errors.Is.
func (e *ValidationError) WithCause(err error) *ValidationError {
	e.cause = err
	return e
}

// First returns the first message recorded for field, or "".
func (e *ValidationError) First(field string) string {
	if msgs := e.Fields[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Code returns the error code used across transports.
func (e *ValidationError) Code() string {
	return "VALIDATION_FAILED"
}

// Error returns the first message, followed by a count of the remaining ones.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "the given data was invalid"
	}

	total := 0
	for _, msgs := range e.Fields {
		total += len(msgs)
	}

	first := e.Fields[e.order[0]][0]
	if total == 1 {
		return first
	}
	if total == 2 {
		return first + " (and 1 more error)"
	}
	return fmt.Sprintf("%s (and %d more errors)", first, total-1)
}

// Unwrap returns the attached cause, if any.
func (e *ValidationError) Unwrap() error {
	return e.cause
}

// Validate evaluates rules against input. Returns nil when every rule passes.
// nonString names the fields whose submitted value was not a string; a
// String rule fails for them.
func Validate(rules []Rule, input map[string]string, nonString ...string) *ValidationError {
	var verr *ValidationError
	fail := func(field, msg string) {
		if verr == nil {
			verr = &ValidationError{}
		}
		verr.Add(field, msg)
	}

	for _, r := range rules {
		value := input[r.Field]
		name := attributeName(r.Field)

		if strings.TrimSpace(value) == "" {
			if r.Required {
				fail(r.Field, fmt.Sprintf("The %s field is required.", name))
			}
			continue
		}

		length := utf8.RuneCountInString(value)
		switch {
		case r.String && slices.Contains(nonString, r.Field):
			fail(r.Field, fmt.Sprintf("The %s must be a string.", name))
		case r.Email && !isEmail(value):
			fail(r.Field, fmt.Sprintf("The %s must be a valid email address.", name))
		case r.Max > 0 && length > r.Max:
			fail(r.Field, fmt.Sprintf("The %s must not be greater than %d characters.", name, r.Max))
		case r.Min > 0 && length < r.Min:
			fail(r.Field, fmt.Sprintf("The %s must be at least %d characters.", name, r.Min))
		case r.Confirmed && input[r.Field+"_confirmation"] != value:
			fail(r.Field, fmt.Sprintf("The %s confirmation does not match.", name))
		}
	}

	return verr
}

// attributeName renders a field key the way messages refer to it.
func attributeName(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

// isEmail accepts a bare RFC 5322 address (no display name or angle brackets)
// with a domain part.
func isEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}
	at := strings.LastIndexByte(value, '@')
	return at > 0 && at < len(value)-1
}
