// Package server assembles the HTTP handler and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adnan855570/Global-Dorm-App/internal/core/health"
	middleware "github.com/adnan855570/Global-Dorm-App/internal/core/middleware"
	"github.com/adnan855570/Global-Dorm-App/internal/core/router"
)

// NewHandler builds the root chi router: probes, metrics and the API.
func NewHandler(logger *slog.Logger, deps router.Deps, ready map[string]health.Pinger) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logger
	}
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(chimw.StripSlashes)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Metrics())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(ready, 2*time.Second))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	router.Mount(r, deps)
	return r
}

// Run serves handler on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
