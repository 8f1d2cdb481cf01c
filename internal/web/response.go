// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/observability"
	"github.com/holomush/holoauth/pkg/errutil"
)

const (
	msgUnauthenticated = "Unauthenticated."
	msgServerError     = "Server Error"
	msgMalformedBody   = "The request body could not be parsed."
	msgThrottled       = "Too many login attempts. Please try again in %d seconds."
)

type messageResponse struct {
	Message string `json:"message"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // client may disconnect
}

func fieldError(field, message string) errorResponse {
	return errorResponse{Message: message, Errors: map[string][]string{field: {message}}}
}

// respondError maps an auth error onto its HTTP status and body. Anything
// unrecognised is logged and reported as a bare 500.
func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: verr.Error(), Errors: verr.Fields})
		return
	}

	switch code := errutil.ErrorCode(err); code {
	case "AUTH_INVALID_CREDENTIALS":
		respondJSON(w, http.StatusUnprocessableEntity, fieldError("email", auth.MsgInvalidCredentials))
	case "AUTH_UNAUTHORIZED", "AUTH_TOKEN_INVALID":
		respondJSON(w, http.StatusUnauthorized, messageResponse{Message: msgUnauthenticated})
	case "RESET_TOKEN_INVALID", "RESET_EMAIL_MISMATCH":
		respondJSON(w, http.StatusUnprocessableEntity, fieldError("email", auth.MsgResetTokenInvalid))
	case "AUTH_TOO_MANY_ATTEMPTS":
		seconds := retryAfterSeconds(err)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		respondJSON(w, http.StatusTooManyRequests, fieldError("email", fmt.Sprintf(msgThrottled, seconds)))
	default:
		errutil.LogErrorContext(r.Context(), a.logger, "request failed", err)
		respondJSON(w, http.StatusInternalServerError, messageResponse{Message: msgServerError})
	}
}

// retryAfterSeconds reads the lockout remainder attached to a throttling
// error, rounded up to whole seconds.
func retryAfterSeconds(err error) int {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 1
	}
	d, ok := oopsErr.Context()["retry_after"].(time.Duration)
	if !ok || d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

// outcome classifies err for holoauth_auth_operations_total.
func outcome(err error) string {
	if err == nil {
		return observability.OutcomeSuccess
	}
	var verr *auth.ValidationError
	if errors.As(err, &verr) {
		return observability.OutcomeInvalid
	}
	switch errutil.ErrorCode(err) {
	case "AUTH_INVALID_CREDENTIALS", "RESET_TOKEN_INVALID", "RESET_EMAIL_MISMATCH":
		return observability.OutcomeInvalid
	case "AUTH_UNAUTHORIZED", "AUTH_TOKEN_INVALID":
		return observability.OutcomeDenied
	case "AUTH_TOO_MANY_ATTEMPTS":
		return observability.OutcomeThrottled
	}
	return observability.OutcomeError
}

// isNotifyFailure reports whether err came from the reset notifier.
func isNotifyFailure(err error) bool {
	code := errutil.ErrorCode(err)
	return code == "RESET_NOTIFY_FAILED" || strings.HasPrefix(code, "NOTIFY_")
}
