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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/taxonid/internal/api"
	"github.com/starford/taxonid/internal/lookup"
	"github.com/starford/taxonid/internal/metrics"
	"github.com/starford/taxonid/internal/sse"
	"github.com/starford/taxonid/internal/taxdb"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.newLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("reference_dir", cfg.Reference.Dir),
		slog.String("taxonomy_db", cfg.Reference.TaxonomyDB),
		slog.Bool("watch", cfg.TaxDB.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := app.openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := app.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := metrics.New(reg)

	broker := sse.NewBroker(cfg.Events.ChangeThrottle)
	defer broker.Close()

	svc := app.newService(db, logger, lookup.WithMetrics(m), lookup.WithPublisher(broker))
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newRouter(apiRouter, db, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.TaxDB.Watch {
		g.Go(func() error {
			return taxdb.Watch(gCtx, db.Path(), logger, func(path string) {
				reloadTaxonomy(db, m, broker, logger, path)
			})
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		// Open event streams only end when the broker closes.
		broker.Close()

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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// readiness reports whether the taxonomy store has data.
type readiness interface {
	Count(ctx context.Context) (int, error)
}

// newRouter mounts health, metrics and the API.
func newRouter(apiRouter http.Handler, store readiness, reg *prometheus.Registry) chi.Router {
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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		n, err := store.Count(r.Context())
		if err != nil || n == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Mount("/api", apiRouter)
	return r
}

// reloadTaxonomy swaps in the database file at path after it changed on disk.
func reloadTaxonomy(db *taxdb.DB, m *metrics.Metrics, broker *sse.Broker, logger *slog.Logger, path string) {
	if _, err := os.Stat(path); err != nil {
		logger.Warn("taxonomy database missing, keeping current data", slog.String("path", path))
		return
	}
	if err := db.Reload(); err != nil {
		logger.Error("taxonomy reload failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	m.IncrementReloads()
	broker.PublishTaxonomyChange(path)
	logger.Info("taxonomy database reloaded", slog.String("path", path))
}
