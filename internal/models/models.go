// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

// Package models defines the typed records exchanged between the Strava
// client, the sync orchestrator and the storage gateway.
//
// The remote API's JSON field names are deliberately kept out of this
// package: decoding from the wire shape and mapping into these records
// happens in exactly one place per record type (internal/strava for
// activities and kudos, internal/auth for tokens).
package models

import (
	"github.com/goccy/go-json"
)

// ActivityRecord is one fitness session as persisted in the Activities table.
// ID is the remote-assigned activity id and the storage primary key.
type ActivityRecord struct {
	ID                 int64
	Name               string
	StartDateLocal     string
	Type               string
	Distance           float64
	MovingTime         float64
	ElapsedTime        float64
	TotalElevationGain float64
	// EndLatLng is the textual representation of the remote [lat, lng] pair,
	// e.g. "[40.4168, -3.7038]". Empty pair serializes as "[]".
	EndLatLng  string
	KudosCount int
	ExternalID string
}

// KudoRecord is one acknowledgement given to an activity. The remote API
// does not expose a stable kudos id, so the storage layer assigns a
// surrogate key on insert.
type KudoRecord struct {
	ResourceState string
	FirstName     string
	LastName      string
	ActivityID    int64
}

// TokenRecord is the OAuth2 credential bundle persisted in the token file.
// The file is read and fully overwritten on refresh, never merged; Athlete
// is carried as raw JSON so the echoed payload survives a round trip.
type TokenRecord struct {
	TokenType    string          `json:"token_type,omitempty"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    int64           `json:"expires_at"`
	ExpiresIn    int64           `json:"expires_in,omitempty"`
	Athlete      json.RawMessage `json:"athlete,omitempty"`
}

// SyncResult reports the outcome of one sync run. A partial-success run
// (rows skipped on primary-key collisions) still returns a result; callers
// detect silent data loss by comparing ActivitiesPersisted against
// ActivitiesFetched.
type SyncResult struct {
	ActivitiesFetched   int    `json:"activities_fetched"`
	ActivitiesPersisted int    `json:"activities_persisted"`
	KudosPersisted      int    `json:"kudos_persisted"`
	Backend             string `json:"backend"`
}
