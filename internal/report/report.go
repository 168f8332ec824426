// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

// Package report produces flat reports and summary statistics from the
// synchronized store: the kudos CSV export and the aggregates behind the
// dashboard.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jfdelafuente/strava-sync/internal/database"
	"github.com/jfdelafuente/strava-sync/internal/logging"
	"github.com/jfdelafuente/strava-sync/internal/models"
)

// kudosQuery joins each kudos giver with its activity, newest activity
// first, then by giver name for a stable export order.
const kudosQuery = `
SELECT
    firstname,
    lastname,
    type,
    Kudos.id_activity,
    start_date_local
FROM Kudos
INNER JOIN Activities ON Kudos.id_activity = Activities.id_activity
ORDER BY start_date_local DESC, lastname, firstname`

// csvHeader is the kudos export header. Column names are part of the
// file format consumed downstream and must not change.
var csvHeader = []string{"FIRST_NAME", "LAST_NAME", "TIPO", "ACTIVIDAD", "START_DATE"}

// KudosRow is one row of the kudos report.
type KudosRow struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Type           string `json:"type"`
	ActivityID     int64  `json:"activity_id"`
	StartDateLocal string `json:"start_date_local"`
}

// TypeStats aggregates activities of one type.
type TypeStats struct {
	Type       string  `json:"type"`
	Activities int64   `json:"activities"`
	DistanceKm float64 `json:"distance_km"`
	TimeHours  float64 `json:"time_hours"`
	ElevationM float64 `json:"elevation_m"`
	Kudos      int64   `json:"kudos"`
}

// Stats summarizes the whole store.
type Stats struct {
	TotalActivities int64       `json:"total_activities"`
	TotalDistanceKm float64     `json:"total_distance_km"`
	TotalTimeHours  float64     `json:"total_time_hours"`
	TotalElevationM float64     `json:"total_elevation_m"`
	TotalKudos      int64       `json:"total_kudos"`
	AvgDistanceKm   float64     `json:"avg_distance_km"`
	ByType          []TypeStats `json:"by_type"`
}

// Reporter runs report queries against one store. Each call acquires
// and releases its own connection.
type Reporter struct {
	store *database.Store
}

// New creates a reporter over the given store.
func New(store *database.Store) *Reporter {
	return &Reporter{store: store}
}

// KudosReport returns every kudos giver joined with its activity.
func (r *Reporter) KudosReport(ctx context.Context) ([]KudosRow, error) {
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Fetch(ctx, kudosQuery)
	if err != nil {
		return nil, err
	}

	out := make([]KudosRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, KudosRow{
			FirstName:      asString(row["firstname"]),
			LastName:       asString(row["lastname"]),
			Type:           asString(row["type"]),
			ActivityID:     asInt64(row["id_activity"]),
			StartDateLocal: asString(row["start_date_local"]),
		})
	}
	return out, nil
}

// ExportKudosCSV writes the kudos report to outputPath and returns the
// number of data rows written. An empty report writes nothing and
// returns 0.
func (r *Reporter) ExportKudosCSV(ctx context.Context, outputPath string) (int, error) {
	rows, err := r.KudosReport(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		logging.Warn().Msg("No kudos data to export")
		return 0, nil
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("report: failed to create output directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("report: failed to create %s: %w", outputPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("report: failed to write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.FirstName,
			row.LastName,
			row.Type,
			strconv.FormatInt(row.ActivityID, 10),
			row.StartDateLocal,
		}
		if err := w.Write(record); err != nil {
			return 0, fmt.Errorf("report: failed to write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("report: failed to flush %s: %w", outputPath, err)
	}

	logging.Info().Str("path", outputPath).Int("rows", len(rows)).Msg("Kudos report exported")
	return len(rows), nil
}

// Stats computes the store-wide summary. Aggregates are cast in SQL so
// both backends return stable scan types.
func (r *Reporter) Stats(ctx context.Context) (*Stats, error) {
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	totals, err := conn.FetchOne(ctx, `
SELECT
    CAST(COUNT(*) AS BIGINT) AS total_activities,
    CAST(COALESCE(SUM(distance), 0) / 1000.0 AS DOUBLE PRECISION) AS total_distance_km,
    CAST(COALESCE(SUM(moving_time), 0) / 3600.0 AS DOUBLE PRECISION) AS total_time_hours,
    CAST(COALESCE(SUM(total_elevation_gain), 0) AS DOUBLE PRECISION) AS total_elevation_m,
    CAST(COALESCE(SUM(kudos_count), 0) AS BIGINT) AS total_kudos,
    CAST(COALESCE(AVG(distance), 0) / 1000.0 AS DOUBLE PRECISION) AS avg_distance_km
FROM Activities`)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	if totals != nil {
		stats.TotalActivities = asInt64(totals["total_activities"])
		stats.TotalDistanceKm = asFloat64(totals["total_distance_km"])
		stats.TotalTimeHours = asFloat64(totals["total_time_hours"])
		stats.TotalElevationM = asFloat64(totals["total_elevation_m"])
		stats.TotalKudos = asInt64(totals["total_kudos"])
		stats.AvgDistanceKm = asFloat64(totals["avg_distance_km"])
	}

	byType, err := conn.Fetch(ctx, `
SELECT
    type,
    CAST(COUNT(*) AS BIGINT) AS activities,
    CAST(COALESCE(SUM(distance), 0) / 1000.0 AS DOUBLE PRECISION) AS distance_km,
    CAST(COALESCE(SUM(moving_time), 0) / 3600.0 AS DOUBLE PRECISION) AS time_hours,
    CAST(COALESCE(SUM(total_elevation_gain), 0) AS DOUBLE PRECISION) AS elevation_m,
    CAST(COALESCE(SUM(kudos_count), 0) AS BIGINT) AS kudos
FROM Activities
GROUP BY type
ORDER BY activities DESC, type`)
	if err != nil {
		return nil, err
	}

	for _, row := range byType {
		stats.ByType = append(stats.ByType, TypeStats{
			Type:       asString(row["type"]),
			Activities: asInt64(row["activities"]),
			DistanceKm: asFloat64(row["distance_km"]),
			TimeHours:  asFloat64(row["time_hours"]),
			ElevationM: asFloat64(row["elevation_m"]),
			Kudos:      asInt64(row["kudos"]),
		})
	}
	return stats, nil
}

// ListActivities returns a page of stored activities, newest first.
func (r *Reporter) ListActivities(ctx context.Context, limit, offset int) ([]models.ActivityRecord, error) {
	conn, err := r.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Fetch(ctx, `
SELECT
    id_activity, name, start_date_local, type,
    distance, moving_time, elapsed_time, total_elevation_gain,
    end_latlng, kudos_count, external_id
FROM Activities
ORDER BY start_date_local DESC
LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}

	out := make([]models.ActivityRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ActivityRecord{
			ID:                 asInt64(row["id_activity"]),
			Name:               asString(row["name"]),
			StartDateLocal:     asString(row["start_date_local"]),
			Type:               asString(row["type"]),
			Distance:           asFloat64(row["distance"]),
			MovingTime:         asFloat64(row["moving_time"]),
			ElapsedTime:        asFloat64(row["elapsed_time"]),
			TotalElevationGain: asFloat64(row["total_elevation_gain"]),
			EndLatLng:          asString(row["end_latlng"]),
			KudosCount:         int(asInt64(row["kudos_count"])),
			ExternalID:         asString(row["external_id"]),
		})
	}
	return out, nil
}

// Scan helpers: database/sql drivers differ in the concrete Go types
// they hand back, so conversions are centralized here.

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	default:
		return 0
	}
}
