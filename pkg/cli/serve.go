// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/form-relay/pkg/api"
	"github.com/telekom/form-relay/pkg/captcha"
	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/dispatch"
	"github.com/telekom/form-relay/pkg/events"
	"github.com/telekom/form-relay/pkg/fallback"
	"github.com/telekom/form-relay/pkg/intake"
	"github.com/telekom/form-relay/pkg/liveness"
	"github.com/telekom/form-relay/pkg/mail"
	"github.com/telekom/form-relay/pkg/ratelimit"
	"github.com/telekom/form-relay/pkg/sms"
	"github.com/telekom/form-relay/pkg/system"
	"github.com/telekom/form-relay/pkg/validation"
	"github.com/telekom/form-relay/pkg/version"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the form relay HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			zl, err := system.NewLogger(rt.debug, rt.cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx, *rt.cfg, zl, rt.debug)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", rt.cfg.Server.ListenAddress)
			if err != nil {
				_ = app.Shutdown(context.Background())
				return fmt.Errorf("listening on %s: %w", rt.cfg.Server.ListenAddress, err)
			}
			return app.Run(ctx, ln)
		},
	}
}

// App is the wired relay: HTTP intake in front of the dispatcher and its
// escalation channels.
type App struct {
	cfg        config.Config
	log        *zap.SugaredLogger
	server     *api.Server
	dispatcher *dispatch.Dispatcher
	queue      dispatch.Queue
	limiter    *ratelimit.Limiter
	store      fallback.Store
	sinks      *events.MultiSink
	probe      *liveness.Probe
}

// NewApp builds every component from cfg. Nothing runs until Run is called.
func NewApp(ctx context.Context, cfg config.Config, zl *zap.Logger, debug bool) (*App, error) {
	log := zl.Sugar()
	log.With("version", version.Version).Info("Starting form-relay")
	app := &App{cfg: cfg, log: log}

	store, err := fallback.Open(ctx, cfg.Fallback, log)
	if err != nil {
		return nil, fmt.Errorf("opening fallback store: %w", err)
	}
	app.store = store

	sinks, err := events.New(cfg.Events, zl)
	if err != nil {
		_ = app.closeResources()
		return nil, fmt.Errorf("creating event sinks: %w", err)
	}
	app.sinks = sinks

	queue, err := dispatch.NewQueue(cfg.Queue, log)
	if err != nil {
		_ = app.closeResources()
		return nil, err
	}
	app.queue = queue

	backoff, err := dispatch.NewBackoff(cfg.Delivery.Backoff, cfg.Delivery.MinDelay, cfg.Delivery.MaxDelay)
	if err != nil {
		_ = app.closeResources()
		return nil, err
	}

	app.dispatcher = dispatch.New(
		dispatch.ConfigFrom(cfg.Delivery, cfg.Queue),
		queue,
		mail.NewSender(cfg.Mail, log),
		sms.New(cfg.SMS, log),
		store,
		log,
		dispatch.WithBackoff(backoff),
		dispatch.WithEvents(sinks),
	)

	app.limiter = ratelimit.New(ratelimit.Config{
		Window:          cfg.RateLimit.Window,
		Max:             cfg.RateLimit.Max,
		CleanupInterval: cfg.RateLimit.CleanupInterval,
	})

	app.server = api.NewServer(zl, cfg, debug)
	err = app.server.RegisterAll([]api.APIController{
		intake.NewController(validation.New(), app.dispatcher, app.limiter, cfg.Delivery.AckMode, log),
		captcha.NewController(captcha.NewVerifier(cfg.Captcha), log),
	})
	if err != nil {
		app.limiter.Stop()
		_ = app.closeResources()
		return nil, fmt.Errorf("registering controllers: %w", err)
	}

	if cfg.Liveness.Enabled {
		lc := cfg.Liveness
		if lc.URL == "" {
			lc.URL = selfURL(cfg.Server)
		}
		probe, err := liveness.New(lc, log)
		if err != nil {
			app.limiter.Stop()
			_ = app.closeResources()
			return nil, err
		}
		app.probe = probe
		log.Infow("Liveness probe enabled", "url", lc.URL, "schedule", lc.Schedule)
	}
	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run starts the dispatcher and serves on ln until ctx is cancelled or the
// server fails, then shuts everything down within the configured timeout.
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	a.dispatcher.Start()
	if a.probe != nil {
		a.probe.Start()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.server.Serve(ln) }()

	var err error
	select {
	case <-ctx.Done():
		a.log.Info("Shutdown signal received")
	case err = <-serveErr:
		if err != nil {
			a.log.Errorw("Server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(err, a.Shutdown(shutdownCtx))
}

// Shutdown stops the HTTP server first so no new jobs arrive, then the
// dispatcher, then the background helpers and stores.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutting down http server: %w", err))
	}
	if err := a.dispatcher.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.probe != nil {
		a.probe.Stop(ctx)
	}
	a.limiter.Stop()
	errs = append(errs, a.closeResources())
	a.log.Info("form-relay stopped")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	if c, ok := a.queue.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing queue: %w", err))
		}
	}
	if a.sinks != nil {
		if err := a.sinks.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing event sinks: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing fallback store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// selfURL points the liveness probe at this instance's own health route.
func selfURL(s config.Server) string {
	host, port, err := net.SplitHostPort(s.ListenAddress)
	if err != nil {
		host, port = "", strings.TrimPrefix(s.ListenAddress, ":")
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	path := s.HealthPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "http://" + net.JoinHostPort(host, port) + path
}
