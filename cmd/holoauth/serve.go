// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	cryptotls "crypto/tls"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/logging"
	"github.com/holomush/holoauth/internal/observability"
	holotls "github.com/holomush/holoauth/internal/tls"
	"github.com/holomush/holoauth/internal/web"
	"github.com/holomush/holoauth/internal/xdg"
)

// attemptSweepInterval is how often the in-memory attempt store drops
// expired windows.
const attemptSweepInterval = time.Minute

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the authentication API and, unless metrics.addr is empty, the
metrics and health server. Runs until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd.ErrOrStderr(), nil)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

// setupLogger installs the process-wide logger described by cfg.
func setupLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err //nolint:wrapcheck // carries LOG_INVALID_LEVEL
	}
	return logging.SetDefault(logging.Options{
		Service: "holoauth",
		Version: version,
		Format:  cfg.Format,
		Level:   level,
		Writer:  w,
	}), nil
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, logOut io.Writer, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	logger, err := setupLogger(cfg.Log, logOut)
	if err != nil {
		return err
	}
	logger.Info("starting holoauth",
		"version", version,
		"http_addr", cfg.HTTP.Addr,
		"store", cfg.Store.Driver,
		"ratelimit", cfg.RateLimit.Driver,
		"notify", cfg.Notify.Driver,
	)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "holoauth",
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
	})
	if err != nil {
		return err //nolint:wrapcheck // carries TRACING_* code
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b, err := openBackend(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer b.close()

	attempts, closeAttempts, err := deps.AttemptStoreFactory(ctx, cfg.RateLimit)
	if err != nil {
		return oops.With("operation", "create attempt store").Wrap(err)
	}
	defer func() {
		if err := closeAttempts(); err != nil {
			logger.Warn("failed to close attempt store", "error", err)
		}
	}()
	if s, ok := attempts.(sweeper); ok {
		go runSweeper(ctx, s, attemptSweepInterval)
	}

	notifier, closeNotifier, err := deps.NotifierFactory(cfg.Notify, logger)
	if err != nil {
		return oops.With("operation", "create notifier").Wrap(err)
	}
	defer closeNotifier()

	var (
		obsServer ObservabilityServer
		metrics   *observability.Metrics
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, b.ready, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		metrics = obsServer.Metrics()
	}

	svc, err := buildServices(cfg, b, attempts, notifier, logger)
	if err != nil {
		stopServer(obsServer, cfg.HTTP.ShutdownTimeout, "observability", logger)
		return err
	}

	api, err := web.New(svc.auth, svc.resets, web.Config{
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Metrics:        metrics,
		Logger:         logger,
	})
	if err != nil {
		stopServer(obsServer, cfg.HTTP.ShutdownTimeout, "observability", logger)
		return err //nolint:wrapcheck // carries WEB_* code
	}

	tlsCfg, err := serverTLS(cfg.HTTP, xdg.CertsDir())
	if err != nil {
		stopServer(obsServer, cfg.HTTP.ShutdownTimeout, "observability", logger)
		return err
	}

	webServer := deps.WebServerFactory(cfg.HTTP.Addr, api.Routes(), web.ServerConfig{
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		TLS:          tlsCfg,
	}, logger)
	webErrCh, err := webServer.Start()
	if err != nil {
		stopServer(obsServer, cfg.HTTP.ShutdownTimeout, "observability", logger)
		return oops.With("operation", "start web server").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, webErrCh, "web", logger)

	if cfg.Auth.PurgeInterval > 0 {
		go runPurger(ctx, svc, metrics, cfg.Auth.PurgeInterval, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("holoauth ready", "http_addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	stopServer(webServer, cfg.HTTP.ShutdownTimeout, "web", logger)
	stopServer(obsServer, cfg.HTTP.ShutdownTimeout, "observability", logger)
	cancel()

	logger.Info("shutdown complete")
	return nil
}

// serverTLS returns the API listener's TLS config, or nil for plain HTTP.
func serverTLS(cfg config.HTTPConfig, certsDir string) (*cryptotls.Config, error) {
	switch {
	case cfg.TLS.CertFile != "":
		return holotls.LoadServerTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile) //nolint:wrapcheck // carries TLS_* code
	case cfg.TLS.SelfSigned:
		if err := xdg.EnsureDir(certsDir); err != nil {
			return nil, err //nolint:wrapcheck // carries XDG_MKDIR_FAILED
		}
		return holotls.EnsureSelfSigned(certsDir, certHosts(cfg.Addr)) //nolint:wrapcheck // carries TLS_* code
	}
	return nil, nil
}

// certHosts lists the names a self-signed certificate covers: loopback
// plus the listen host when one is set.
func certHosts(addr string) []string {
	hosts := []string{"localhost", "127.0.0.1", "::1"}
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" || slices.Contains(hosts, host) {
		return hosts
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return hosts
	}
	return append(hosts, host)
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopServer stops s within timeout. A nil server is ignored.
func stopServer(s stopper, timeout time.Duration, name string, logger *slog.Logger) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports a fatal error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
