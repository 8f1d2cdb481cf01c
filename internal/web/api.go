// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes the auth services over HTTP under /authentication.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/observability"
)

// DefaultRequestTimeout bounds each request when Config leaves it unset.
const DefaultRequestTimeout = 30 * time.Second

// Config controls the API handlers.
type Config struct {
	RequestTimeout time.Duration
	// Metrics is optional; nil records nothing.
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// API wires the auth services to HTTP handlers.
type API struct {
	auth    *auth.Service
	resets  *auth.PasswordResetService
	metrics *observability.Metrics
	logger  *slog.Logger
	timeout time.Duration
}

// New creates the API. Both services are required.
func New(authSvc *auth.Service, resets *auth.PasswordResetService, cfg Config) (*API, error) {
	if authSvc == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("auth service is required")
	}
	if resets == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("password reset service is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &API{
		auth:    authSvc,
		resets:  resets,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		timeout: cfg.RequestTimeout,
	}, nil
}

// Routes builds the chi router with every endpoint and middleware.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otelhttp.NewMiddleware("holoauth",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	))
	r.Use(a.observe)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(a.timeout))

	r.Get("/healthz", a.handleHealth)

	r.Route("/authentication", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/password/forgot", a.handleForgotPassword)
		r.Post("/password/reset", a.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)
			r.Post("/logout", a.handleLogout)
			r.Get("/me", a.handleMe)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusNotFound, messageResponse{Message: "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, messageResponse{Message: "Method Not Allowed"})
	})

	return r
}
