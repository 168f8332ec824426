// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/jfdelafuente/strava-sync/internal/logging"
	"github.com/jfdelafuente/strava-sync/internal/sync"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// writeJSON renders v with the standard content type. Encoding failures
// are logged, not surfaced: headers are already gone.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": s.backend,
	})
}

// handleActivities serves one page of stored activities, newest first.
// Query params: limit (default 20, capped at 200) and offset.
func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	activities, err := s.data.ListActivities(r.Context(), limit, offset)
	if err != nil {
		logging.Err(err).Msg("Failed to list activities")
		writeError(w, http.StatusInternalServerError, "failed to query activities")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"activities": activities,
		"limit":      limit,
		"offset":     offset,
		"count":      len(activities),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.data.Stats(r.Context())
	if err != nil {
		logging.Err(err).Msg("Failed to compute stats")
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleKudosReport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.data.KudosReport(r.Context())
	if err != nil {
		logging.Err(err).Msg("Failed to build kudos report")
		writeError(w, http.StatusInternalServerError, "failed to build kudos report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kudos": rows,
		"count": len(rows),
	})
}

// handleSync triggers one synchronization run and blocks until it
// finishes. An optional `since` query param (Unix epoch) overrides the
// watermark; since=0 forces a full sync.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var opts sync.Options
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be a Unix epoch")
			return
		}
		opts.Since = &since
	}

	result, err := s.runner.Run(r.Context(), opts)
	if err != nil {
		logging.Err(err).Msg("Sync run failed")
		writeError(w, http.StatusInternalServerError, "sync failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
