// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"
	"time"

	"github.com/holomush/holoauth/internal/auth"
)

type loginResponse struct {
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// fields decodes the body or answers 400 itself. ok is false when the
// handler should stop.
func (a *API) fields(w http.ResponseWriter, r *http.Request, names ...string) (in map[string]string, nonString []string, ok bool) {
	in, nonString, err := decodeFields(w, r, names...)
	if err != nil {
		a.logger.DebugContext(r.Context(), "malformed request body", "error", err)
		respondJSON(w, http.StatusBadRequest, messageResponse{Message: msgMalformedBody})
		return nil, nil, false
	}
	return in, nonString, true
}

// typesValid runs rules with the type information the service call cannot
// carry and answers 422 itself when a field was not a string.
func (a *API) typesValid(w http.ResponseWriter, r *http.Request, op string, rules []auth.Rule, in map[string]string, nonString []string) bool {
	if len(nonString) == 0 {
		return true
	}
	if verr := auth.Validate(rules, in, nonString...); verr != nil {
		a.metrics.RecordAuth(op, outcome(verr))
		a.respondError(w, r, verr)
		return false
	}
	return true
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	in, nonString, ok := a.fields(w, r, "name", "email", "password")
	if !ok {
		return
	}
	user, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Name:      in["name"],
		Email:     in["email"],
		Password:  in["password"],
		NonString: nonString,
	})
	a.metrics.RecordAuth("register", outcome(err))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.logger.InfoContext(r.Context(), "user registered", "user_id", user.ID.String())
	respondJSON(w, http.StatusCreated, successResponse{Success: true})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	in, nonString, ok := a.fields(w, r, "email", "password")
	if !ok || !a.typesValid(w, r, "login", auth.LoginRules, in, nonString) {
		return
	}
	result, err := a.auth.Login(r.Context(), in["email"], in["password"])
	a.metrics.RecordAuth("login", outcome(err))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{Name: result.User.Name, AccessToken: result.PlainTextToken})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	var token *auth.AccessToken
	if id != nil {
		token = id.Token
	}
	err := a.auth.Logout(r.Context(), token)
	a.metrics.RecordAuth("logout", outcome(err))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, messageResponse{Message: msgUnauthenticated})
		return
	}
	respondJSON(w, http.StatusOK, userResponse{
		ID:        id.User.ID.String(),
		Name:      id.User.Name,
		CreatedAt: id.User.CreatedAt.UTC(),
		UpdatedAt: id.User.UpdatedAt.UTC(),
	})
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	in, nonString, ok := a.fields(w, r, "email")
	if !ok || !a.typesValid(w, r, "password_forgot", auth.ForgotPasswordRules, in, nonString) {
		return
	}
	_, err := a.resets.RequestReset(r.Context(), in["email"])
	a.metrics.RecordAuth("password_forgot", outcome(err))
	if err != nil {
		if isNotifyFailure(err) {
			a.metrics.RecordNotifyFailure()
		}
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: auth.MsgResetLinkSent})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	in, nonString, ok := a.fields(w, r, "token", "email", "password", "password_confirmation")
	if !ok {
		return
	}
	err := a.resets.ResetPassword(r.Context(), auth.ResetInput{
		Token:                in["token"],
		Email:                in["email"],
		Password:             in["password"],
		PasswordConfirmation: in["password_confirmation"],
		NonString:            nonString,
	})
	a.metrics.RecordAuth("password_reset", outcome(err))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: auth.MsgPasswordReset})
}
