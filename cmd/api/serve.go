package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/pkordes/attraction-queue/internal/config"
	"github.com/pkordes/attraction-queue/internal/handler"
	"github.com/pkordes/attraction-queue/internal/metrics"
	"github.com/pkordes/attraction-queue/internal/middleware"
	"github.com/pkordes/attraction-queue/internal/repo"
	"github.com/pkordes/attraction-queue/internal/service"
	"github.com/pkordes/attraction-queue/spec"
)

// shutdownTimeout is how long in-flight requests get to finish after a
// termination signal.
const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// --- Store ------------------------------------------------------------
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.MigrateOnStart {
		if cfg.Backend != config.BackendPostgres {
			logger.Warn("MIGRATE_ON_START ignored: only the postgres backend has migrations", "backend", cfg.Backend)
		} else if err := migrateUp(ctx, cfg.DatabaseURL, logger); err != nil {
			return err
		}
	}

	// --- Services ---------------------------------------------------------
	m := metrics.New()
	registry, queues := service.New(store,
		service.WithLogger(logger),
		service.WithRecorder(m),
	)

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, logger, registry, queues, store, m),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "backend", cfg.Backend)
		serveErr <- srv.ListenAndServe()
	}()

	// Graceful shutdown: wait for a signal (ctx is canceled by main), then
	// give in-flight requests up to shutdownTimeout to complete.
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// newRouter assembles the middleware chain and every route.
//
// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer →
// metrics → CORS → body limit.
// RequestID generates a unique trace ID per request.
// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP (safe behind a proxy).
// SlogLogger writes one structured JSON log line per request.
// Recoverer catches panics and returns HTTP 500 instead of crashing.
func newRouter(cfg config.Config, logger *slog.Logger, attractions handler.AttractionServicer,
	queues handler.QueueServicer, store repo.Store, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	handler.NewServer(attractions, queues, store, logger).Register(r)

	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		//nolint:errcheck
		w.Write(spec.OpenAPI)
	})
	return r
}
