// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the sync pipeline and the dashboard:
// - Sync run outcomes and durations
// - Remote API call latency and error classes
// - Rows fetched and persisted per run
// - Dashboard endpoint latency

var (
	// Sync Run Metrics
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"outcome"}, // "success", "aborted"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strava_sync_duration_seconds",
			Help:    "Duration of complete sync runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	ActivitiesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strava_activities_fetched_total",
			Help: "Total number of activities fetched from the remote API",
		},
	)

	ActivitiesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strava_activities_persisted_total",
			Help: "Total number of activity rows persisted",
		},
	)

	KudosPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strava_kudos_persisted_total",
			Help: "Total number of kudos rows persisted",
		},
	)

	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_rows_skipped_total",
			Help: "Total number of rows skipped during per-row insert fallback",
		},
		[]string{"table"},
	)

	// Remote API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strava_api_request_duration_seconds",
			Help:    "Duration of remote API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_api_errors_total",
			Help: "Total number of remote API errors by classification",
		},
		[]string{"endpoint", "kind"}, // kind: tls, auth, rate_limited, http, network
	)

	// Token Lifecycle Metrics
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_token_refreshes_total",
			Help: "Total number of OAuth2 token refresh attempts by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	// Dashboard Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strava_http_request_duration_seconds",
			Help:    "Duration of dashboard HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

// ObserveSyncRun records one completed run.
func ObserveSyncRun(outcome string, start time.Time) {
	SyncRuns.WithLabelValues(outcome).Inc()
	SyncDuration.Observe(time.Since(start).Seconds())
}

// ObserveAPIRequest records one remote API call.
func ObserveAPIRequest(endpoint string, start time.Time) {
	APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
