// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/synka/internal/api"
	"github.com/starford/synka/internal/mcpserver"
	"github.com/starford/synka/internal/metrics"
	"github.com/starford/synka/internal/watcher"
)

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("cache_backend", string(cfg.Cache.Backend)),
		slog.String("offline_path", cfg.Offline.Path),
		slog.String("remote_mode", cfg.Remote.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt, err := start(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	// Build API router.
	apiRouter := api.NewRouter(api.Deps{
		Session: rt.session,
		Tracker: rt.tracker,
		Monitor: rt.monitor,
		Bus:     rt.bus,
		Remote:  rt.remote,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Offline directory watcher.
	if cfg.Sync.WatchOffline {
		g.Go(func() error {
			if err := watcher.Watch(gCtx, rt.offline, rt.store, rt.bus, logger); err != nil {
				logger.Warn("watcher: disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Connectivity monitor.
	if cfg.Connectivity.Enabled {
		g.Go(func() error {
			return rt.monitor.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher and monitor stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP mounts the session and serves the MCP tools on stdio until stdin
// closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	rt, err := start(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer rt.close()
	rt.session.Wait()

	srv := mcpserver.New(rt.session, rt.bus, app.version, nil)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
