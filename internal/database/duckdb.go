// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"github.com/jfdelafuente/strava-sync/internal/config"
	"github.com/jfdelafuente/strava-sync/internal/logging"
)

var duckdbDialect = dialect{
	name:           config.BackendDuckDB,
	numberedParams: false,
	// DuckDB has no AUTOINCREMENT column modifier; the surrogate kudos
	// key draws from an explicit sequence instead.
	createSequence: "CREATE SEQUENCE IF NOT EXISTS seq_kudos START 1",
	createKudosDDL: `
CREATE TABLE IF NOT EXISTS Kudos (
    id_kudos BIGINT PRIMARY KEY DEFAULT nextval('seq_kudos'),
    resource_state TEXT,
    firstname TEXT,
    lastname TEXT,
    id_activity BIGINT,
    FOREIGN KEY (id_activity) REFERENCES Activities(id_activity)
)`,
	doublePrecision: "DOUBLE",
}

// OpenDuckDB opens (creating if necessary) the embedded database file.
// The parent directory is created on demand.
func OpenDuckDB(cfg *config.DatabaseConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, &ConnectionError{Backend: config.BackendDuckDB, Err: err}
		}
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, &ConnectionError{Backend: config.BackendDuckDB, Err: err}
	}

	// A single embedded writer: keep the pool small so concurrent
	// dashboard reads cannot starve a running sync.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	logging.Info().Str("path", cfg.Path).Msg("DuckDB database opened")
	return &Store{db: db, dialect: duckdbDialect, label: config.BackendDuckDB}, nil
}
