// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package database

import (
	"github.com/jfdelafuente/strava-sync/internal/models"
)

// Record is one row expressed as ordered column/value pairs. Order
// matters: batch inserts derive the statement's column list from the
// first record, so every record in one batch must carry the identical
// column set in the identical order. Callers guarantee this by building
// records through the typed constructors below rather than ad hoc.
type Record struct {
	Columns []string
	Values  []interface{}
}

// ActivityRecord maps a fetched activity to its storage row. The field
// mapping is explicit so remote schema drift surfaces as a compile
// error, not a silently dropped column.
func ActivityRecord(a *models.ActivityRecord) Record {
	return Record{
		Columns: []string{
			"id_activity",
			"name",
			"start_date_local",
			"type",
			"distance",
			"moving_time",
			"elapsed_time",
			"total_elevation_gain",
			"end_latlng",
			"kudos_count",
			"external_id",
		},
		Values: []interface{}{
			a.ID,
			a.Name,
			a.StartDateLocal,
			a.Type,
			a.Distance,
			a.MovingTime,
			a.ElapsedTime,
			a.TotalElevationGain,
			a.EndLatLng,
			a.KudosCount,
			a.ExternalID,
		},
	}
}

// KudoRecord maps a fetched kudos giver to its storage row. The
// surrogate primary key is backend-assigned and never appears here.
func KudoRecord(k *models.KudoRecord) Record {
	return Record{
		Columns: []string{
			"resource_state",
			"firstname",
			"lastname",
			"id_activity",
		},
		Values: []interface{}{
			k.ResourceState,
			k.FirstName,
			k.LastName,
			k.ActivityID,
		},
	}
}

// Row is one fetched row keyed by column name.
type Row map[string]interface{}
