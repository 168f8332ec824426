// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jfdelafuente/strava-sync/internal/config"
	"github.com/jfdelafuente/strava-sync/internal/database"
	"github.com/jfdelafuente/strava-sync/internal/models"
)

// seedStore opens a throwaway embedded database and loads it with two
// activities and three kudos.
func seedStore(t *testing.T) *database.Store {
	t.Helper()
	store, err := database.OpenDuckDB(&config.DatabaseConfig{
		Backend: config.BackendDuckDB,
		Path:    filepath.Join(t.TempDir(), "report_test.duckdb"),
	})
	if err != nil {
		t.Fatalf("OpenDuckDB() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	conn, err := store.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer conn.Release()

	activities := []models.ActivityRecord{
		{
			ID: 1, Name: "Morning Run", StartDateLocal: "2021-06-01T09:00:00Z", Type: "Run",
			Distance: 10000, MovingTime: 3600, ElapsedTime: 3700, TotalElevationGain: 120,
			EndLatLng: "[40.4, -3.7]", KudosCount: 2, ExternalID: "e1",
		},
		{
			ID: 2, Name: "Evening Ride", StartDateLocal: "2020-03-31T17:18:15Z", Type: "Ride",
			Distance: 28000, MovingTime: 4200, ElapsedTime: 4900, TotalElevationGain: 516,
			EndLatLng: "[]", KudosCount: 1, ExternalID: "e2",
		},
	}
	for i := range activities {
		if err := conn.Insert(ctx, database.TableActivities, database.ActivityRecord(&activities[i])); err != nil {
			t.Fatalf("Insert() activity error = %v", err)
		}
	}

	kudos := []models.KudoRecord{
		{ResourceState: "2", FirstName: "Ana", LastName: "G.", ActivityID: 1},
		{ResourceState: "2", FirstName: "Luis", LastName: "M.", ActivityID: 1},
		{ResourceState: "2", FirstName: "Eva", LastName: "B.", ActivityID: 2},
	}
	for i := range kudos {
		if err := conn.Insert(ctx, database.TableKudos, database.KudoRecord(&kudos[i])); err != nil {
			t.Fatalf("Insert() kudos error = %v", err)
		}
	}

	return store
}

func TestKudosReportOrder(t *testing.T) {
	r := New(seedStore(t))

	rows, err := r.KudosReport(context.Background())
	if err != nil {
		t.Fatalf("KudosReport() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	// Newest activity first, then giver last name.
	if rows[0].FirstName != "Ana" || rows[1].FirstName != "Luis" {
		t.Errorf("activity 1 givers = %q, %q, want Ana then Luis", rows[0].FirstName, rows[1].FirstName)
	}
	if rows[2].FirstName != "Eva" {
		t.Errorf("rows[2].FirstName = %q, want Eva", rows[2].FirstName)
	}
	if rows[0].Type != "Run" || rows[2].Type != "Ride" {
		t.Errorf("types = %q, %q; want Run, Ride", rows[0].Type, rows[2].Type)
	}
}

func TestExportKudosCSV(t *testing.T) {
	r := New(seedStore(t))
	out := filepath.Join(t.TempDir(), "reports", "kudos.csv")

	n, err := r.ExportKudosCSV(context.Background(), out)
	if err != nil {
		t.Fatalf("ExportKudosCSV() error = %v", err)
	}
	if n != 3 {
		t.Errorf("exported %d rows, want 3", n)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("export has %d lines, want 4", len(lines))
	}
	if lines[0] != "FIRST_NAME,LAST_NAME,TIPO,ACTIVIDAD,START_DATE" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "Ana,G.,Run,1,2021-06-01T09:00:00Z" {
		t.Errorf("first row = %q", lines[1])
	}
}

func TestExportKudosCSVEmptyStore(t *testing.T) {
	store, err := database.OpenDuckDB(&config.DatabaseConfig{
		Backend: config.BackendDuckDB,
		Path:    filepath.Join(t.TempDir(), "empty.duckdb"),
	})
	if err != nil {
		t.Fatalf("OpenDuckDB() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}

	out := filepath.Join(t.TempDir(), "kudos.csv")
	n, err := New(store).ExportKudosCSV(context.Background(), out)
	if err != nil {
		t.Fatalf("ExportKudosCSV() error = %v", err)
	}
	if n != 0 {
		t.Errorf("exported %d rows, want 0", n)
	}
	if _, err := os.Stat(out); err == nil {
		t.Error("export file created for empty report")
	}
}

func TestStats(t *testing.T) {
	r := New(seedStore(t))

	stats, err := r.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if stats.TotalActivities != 2 {
		t.Errorf("TotalActivities = %d, want 2", stats.TotalActivities)
	}
	if stats.TotalDistanceKm != 38 {
		t.Errorf("TotalDistanceKm = %v, want 38", stats.TotalDistanceKm)
	}
	if stats.TotalKudos != 3 {
		t.Errorf("TotalKudos = %d, want 3", stats.TotalKudos)
	}
	if stats.AvgDistanceKm != 19 {
		t.Errorf("AvgDistanceKm = %v, want 19", stats.AvgDistanceKm)
	}
	if len(stats.ByType) != 2 {
		t.Fatalf("ByType has %d entries, want 2", len(stats.ByType))
	}
	// Ties on count break by type name.
	if stats.ByType[0].Type != "Ride" || stats.ByType[1].Type != "Run" {
		t.Errorf("ByType order = %q, %q; want Ride, Run", stats.ByType[0].Type, stats.ByType[1].Type)
	}
}

func TestListActivities(t *testing.T) {
	r := New(seedStore(t))

	page, err := r.ListActivities(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("ListActivities() error = %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("got %d activities, want 1", len(page))
	}
	if page[0].ID != 1 {
		t.Errorf("newest activity ID = %d, want 1", page[0].ID)
	}

	page, err = r.ListActivities(context.Background(), 10, 1)
	if err != nil {
		t.Fatalf("ListActivities() error = %v", err)
	}
	if len(page) != 1 || page[0].ID != 2 {
		t.Errorf("second page = %+v, want activity 2", page)
	}
}
