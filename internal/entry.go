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

	"github.com/DasScrumTeam/obsidian-mcp-server/internal/mcpserver"
	"github.com/DasScrumTeam/obsidian-mcp-server/internal/obsidian"
	"github.com/DasScrumTeam/obsidian-mcp-server/internal/vaultcache"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Structured JSON logger on stderr; stdout belongs to the stdio
	// transport.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("transport", cfg.App.Transport),
		slog.String("obsidian_base_url", cfg.Obsidian.BaseURL),
		slog.Bool("cache_enabled", cfg.Cache.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Remote vault client.
	client := obsidian.NewClient(obsidian.Options{
		BaseURL:            cfg.Obsidian.BaseURL,
		APIKey:             cfg.Obsidian.APIKey,
		InsecureSkipVerify: cfg.Obsidian.InsecureSkipVerify,
		Timeout:            cfg.Obsidian.Timeout(),
	})

	// Vault cache (optional).
	var cache *vaultcache.Manager
	if cfg.Cache.Enabled {
		var err error
		cache, err = vaultcache.NewManager(client, logger)
		if err != nil {
			return fmt.Errorf("init vault cache: %w", err)
		}
		defer cache.Close()
	}

	mcpSrv := mcpserver.New(client, cache, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Background build + periodic refresh.
	if cache != nil {
		sched := vaultcache.NewScheduler(cache, cfg.Cache.RefreshInterval(), logger)
		g.Go(func() error {
			sched.Run(gCtx)
			return nil
		})
	}

	stop := func() {}

	switch cfg.App.Transport {
	case TransportStdio:
		logger.Info("Serving MCP over stdio")
		g.Go(func() error {
			if err := mcpSrv.ServeStdio(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("stdio server error: %w", err)
			}
			return nil
		})

	case TransportHTTP:
		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)

		// Health check endpoints (unauthenticated).
		r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
			state := "disabled"
			if cache != nil {
				state = cache.State().String()
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(fmt.Sprintf(`{"status":"ok","cache":%q}`, state)))
		})

		r.Mount("/mcp", mcpSrv.HTTPHandler())

		httpServer := &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: r,
		}

		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})

		stop = func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}

	default:
		return fmt.Errorf("unknown transport: %s", cfg.App.Transport)
	}

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

		cancel()
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped")
	return nil
}
