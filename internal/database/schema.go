// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package database

import (
	"context"
	"fmt"

	"github.com/jfdelafuente/strava-sync/internal/logging"
)

// Table names. The activity primary key is the remote-assigned id; the
// kudos key is a backend-assigned surrogate because the remote kudos
// response exposes no stable id.
const (
	TableActivities = "Activities"
	TableKudos      = "Kudos"
)

// createActivitiesDDL is shared between backends apart from the
// floating-point type name.
const createActivitiesDDL = `
CREATE TABLE IF NOT EXISTS Activities (
    id_activity BIGINT PRIMARY KEY,
    name TEXT,
    start_date_local TEXT,
    type TEXT,
    distance %[1]s,
    moving_time %[1]s,
    elapsed_time %[1]s,
    total_elevation_gain %[1]s,
    end_latlng TEXT,
    kudos_count INTEGER,
    external_id TEXT
)`

const (
	dropActivitiesDDL = "DROP TABLE IF EXISTS Activities"
	dropKudosDDL      = "DROP TABLE IF EXISTS Kudos"
)

// InitSchema creates both tables if absent. Safe to run on every
// startup.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := make([]string, 0, 3)
	if s.dialect.createSequence != "" {
		stmts = append(stmts, s.dialect.createSequence)
	}
	stmts = append(stmts,
		fmt.Sprintf(createActivitiesDDL, s.dialect.doublePrecision),
		s.dialect.createKudosDDL,
	)

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &QueryError{Op: "init_schema", Err: err}
		}
	}

	logging.Info().Str("backend", s.label).Msg("Database schema initialized")
	return nil
}

// ResetSchema drops and recreates both tables, destroying all stored
// data. Kudos drops first because of its foreign key.
func (s *Store) ResetSchema(ctx context.Context) error {
	for _, stmt := range []string{dropKudosDDL, dropActivitiesDDL} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &QueryError{Op: "reset_schema", Err: err}
		}
	}

	logging.Warn().Str("backend", s.label).Msg("Database schema dropped")
	return s.InitSchema(ctx)
}
