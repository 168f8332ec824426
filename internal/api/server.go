// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

// Package api serves the dashboard HTTP API over the synchronized
// store: activity pages, summary statistics, the kudos report, and an
// on-demand sync trigger.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jfdelafuente/strava-sync/internal/config"
	"github.com/jfdelafuente/strava-sync/internal/logging"
	"github.com/jfdelafuente/strava-sync/internal/metrics"
	"github.com/jfdelafuente/strava-sync/internal/models"
	"github.com/jfdelafuente/strava-sync/internal/report"
	"github.com/jfdelafuente/strava-sync/internal/sync"
)

// DataSource is the read side the handlers consume. Implemented by
// report.Reporter.
type DataSource interface {
	KudosReport(ctx context.Context) ([]report.KudosRow, error)
	Stats(ctx context.Context) (*report.Stats, error)
	ListActivities(ctx context.Context, limit, offset int) ([]models.ActivityRecord, error)
}

// SyncRunner triggers one synchronization run. Implemented by
// sync.Orchestrator.
type SyncRunner interface {
	Run(ctx context.Context, opts sync.Options) (*models.SyncResult, error)
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg     *config.ServerConfig
	data    DataSource
	runner  SyncRunner
	backend string
	http    *http.Server
}

// NewServer wires the dashboard over the given data source and sync
// runner. backend is the storage label reported by /health.
func NewServer(cfg *config.ServerConfig, data DataSource, runner SyncRunner, backend string) *Server {
	s := &Server{
		cfg:     cfg,
		data:    data,
		runner:  runner,
		backend: backend,
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		IdleTimeout:  2 * cfg.Timeout,
	}
	return s
}

// Routes builds the router. Exposed separately so tests can exercise
// handlers without binding a port.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/activities", s.handleActivities)
		r.Get("/stats", s.handleStats)
		r.Get("/kudos-report", s.handleKudosReport)
		r.Post("/sync", s.handleSync)
	})

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logging.Info().Str("addr", s.http.Addr).Msg("Dashboard server starting")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info().Msg("Dashboard server stopping")
	return s.http.Shutdown(ctx)
}

// observe records request latency per route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(pattern, r.Method, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
