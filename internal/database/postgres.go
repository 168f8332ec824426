// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/jfdelafuente/strava-sync/internal/config"
	"github.com/jfdelafuente/strava-sync/internal/logging"
)

var postgresDialect = dialect{
	name:           config.BackendPostgres,
	numberedParams: true,
	createKudosDDL: `
CREATE TABLE IF NOT EXISTS Kudos (
    id_kudos BIGSERIAL PRIMARY KEY,
    resource_state TEXT,
    firstname TEXT,
    lastname TEXT,
    id_activity BIGINT,
    FOREIGN KEY (id_activity) REFERENCES Activities(id_activity)
)`,
	doublePrecision: "DOUBLE PRECISION",
}

// OpenPostgres connects to the client/server backend described by cfg.
func OpenPostgres(cfg *config.PostgresConfig) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &ConnectionError{Backend: config.BackendPostgres, Err: err}
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logging.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("PostgreSQL database opened")
	return &Store{db: db, dialect: postgresDialect, label: config.BackendPostgres}, nil
}
