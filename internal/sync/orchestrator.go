// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

// Package sync coordinates one synchronization run: obtain a valid
// access token, compute the incremental window from the watermark log,
// fetch new activities, persist them, fetch and persist kudos for each
// fetched activity, and append the watermark record.
//
// The pipeline is strictly sequential and runs on one pinned storage
// connection. Persistence is partial-failure tolerant: a failed batch
// insert falls back to row-by-row insertion that skips (and logs) rows
// which cannot land, so one bad record never aborts a run.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/jfdelafuente/strava-sync/internal/database"
	"github.com/jfdelafuente/strava-sync/internal/logging"
	"github.com/jfdelafuente/strava-sync/internal/metrics"
	"github.com/jfdelafuente/strava-sync/internal/models"
	"github.com/jfdelafuente/strava-sync/internal/strava"
	"github.com/jfdelafuente/strava-sync/internal/synclog"
)

// TokenSource yields an access token usable right now, refreshing the
// stored bundle when needed. Implemented by auth.Manager.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
}

// Storage is the slice of the database gateway the orchestrator
// consumes. Implemented by StoreAdapter over *database.Store and by
// fakes in tests.
type Storage interface {
	Label() string
	Acquire(ctx context.Context) (Conn, error)
}

// Conn is one pinned storage connection.
type Conn interface {
	Insert(ctx context.Context, table string, rec database.Record) error
	InsertMany(ctx context.Context, table string, recs []database.Record) (int, error)
	Release() error
}

// StoreAdapter adapts *database.Store to the Storage interface.
type StoreAdapter struct {
	*database.Store
}

// Acquire pins one connection from the store.
func (a StoreAdapter) Acquire(ctx context.Context) (Conn, error) {
	return a.Store.Acquire(ctx)
}

// Options tunes one run.
type Options struct {
	// Since overrides the watermark when non-nil: a pointer to 0 forces
	// a full sync, any other value is an epoch lower bound.
	Since *int64
}

// Orchestrator wires the pipeline's components together. Construct with
// New and reuse across runs.
type Orchestrator struct {
	tokens  TokenSource
	client  strava.ActivityClient
	storage Storage
	log     *synclog.Log
}

// New creates an orchestrator over the given components.
func New(tokens TokenSource, client strava.ActivityClient, storage Storage, log *synclog.Log) *Orchestrator {
	return &Orchestrator{
		tokens:  tokens,
		client:  client,
		storage: storage,
		log:     log,
	}
}

// Run executes one complete sync. Fatal failures (token, activity fetch,
// connection) abort the run with an error; row-level and per-activity
// kudos failures are logged and skipped.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*models.SyncResult, error) {
	start := time.Now()
	result, err := o.run(ctx, opts)
	if err != nil {
		metrics.ObserveSyncRun("aborted", start)
		return nil, err
	}
	metrics.ObserveSyncRun("success", start)
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, opts Options) (*models.SyncResult, error) {
	logging.Info().Str("backend", o.storage.Label()).Msg("Sync started")

	token, err := o.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync: could not obtain access token: %w", err)
	}

	activities, err := o.client.FetchActivities(ctx, token, o.resolveSince(opts))
	if err != nil {
		return nil, fmt.Errorf("sync: activity fetch failed: %w", err)
	}
	metrics.ActivitiesFetched.Add(float64(len(activities)))

	result := &models.SyncResult{
		ActivitiesFetched: len(activities),
		Backend:           o.storage.Label(),
	}

	if len(activities) == 0 {
		logging.Info().Msg("No new activities, sync complete")
		return result, nil
	}

	if err := o.persist(ctx, token, activities, result); err != nil {
		return nil, err
	}

	if result.ActivitiesPersisted == 0 {
		// Nothing landed (typically an already-synced window re-fetched
		// after a crash between commit and log append). Same outcome as
		// no new activities.
		logging.Info().Int("fetched", result.ActivitiesFetched).Msg("No rows persisted, sync complete")
		return result, nil
	}

	// Appended only after the storage connection is back in the pool,
	// and a failure here does not fail the run: the data is committed,
	// and the next run re-fetches the same window and fails softly on
	// primary-key collisions.
	if err := o.log.AppendNow(result.ActivitiesFetched); err != nil {
		logging.Error().Err(err).Msg("Could not update sync log, next run will re-fetch this window")
	}

	logging.Info().
		Int("fetched", result.ActivitiesFetched).
		Int("persisted", result.ActivitiesPersisted).
		Int("kudos", result.KudosPersisted).
		Str("backend", result.Backend).
		Msg("Sync complete")
	return result, nil
}

// resolveSince computes the incremental lower bound: an explicit
// override wins, otherwise the watermark log decides (0 means full
// sync).
func (o *Orchestrator) resolveSince(opts Options) int64 {
	if opts.Since != nil {
		logging.Info().Int64("since", *opts.Since).Msg("Using explicit sync window")
		return *opts.Since
	}
	return o.log.LastSyncEpoch()
}

// persist runs the storage phase of one sync on a single pinned
// connection: activities first, then kudos for every fetched activity
// when at least one activity landed. The connection is released before
// the caller touches the watermark log.
func (o *Orchestrator) persist(ctx context.Context, token string, activities []models.ActivityRecord, result *models.SyncResult) error {
	conn, err := o.storage.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("sync: could not acquire storage connection: %w", err)
	}
	defer func() {
		if err := conn.Release(); err != nil {
			logging.Warn().Err(err).Msg("Failed to release storage connection")
		}
	}()

	result.ActivitiesPersisted = o.persistActivities(ctx, conn, activities)
	metrics.ActivitiesPersisted.Add(float64(result.ActivitiesPersisted))

	if result.ActivitiesPersisted == 0 {
		return nil
	}

	kudos := o.fetchAllKudos(ctx, token, activities)
	result.KudosPersisted = o.persistKudos(ctx, conn, kudos)
	metrics.KudosPersisted.Add(float64(result.KudosPersisted))
	return nil
}

// persistActivities writes the fetched batch: one batch insert first,
// then row-by-row with skip-on-failure if the batch cannot land as a
// whole. Returns the number of rows persisted, anywhere from 0 to
// len(activities).
func (o *Orchestrator) persistActivities(ctx context.Context, conn Conn, activities []models.ActivityRecord) int {
	recs := make([]database.Record, 0, len(activities))
	for i := range activities {
		recs = append(recs, database.ActivityRecord(&activities[i]))
	}

	n, err := conn.InsertMany(ctx, database.TableActivities, recs)
	if err == nil {
		logging.Info().Int("count", n).Msg("Activities persisted (batch)")
		return n
	}

	logging.Warn().Err(err).Msg("Batch insert of activities failed, falling back to per-row inserts")
	count := 0
	for i := range activities {
		if err := conn.Insert(ctx, database.TableActivities, recs[i]); err != nil {
			metrics.RowsSkipped.WithLabelValues(database.TableActivities).Inc()
			logging.Error().Err(err).Int64("activity", activities[i].ID).Msg("Skipping activity row")
			continue
		}
		count++
	}
	logging.Info().Int("count", count).Int("skipped", len(activities)-count).Msg("Activities persisted (per-row)")
	return count
}

// fetchAllKudos collects kudos for every fetched activity, in fetch
// order. A failure on one activity skips that activity only.
func (o *Orchestrator) fetchAllKudos(ctx context.Context, token string, activities []models.ActivityRecord) []models.KudoRecord {
	var all []models.KudoRecord
	for i := range activities {
		kudos, err := o.client.FetchKudos(ctx, token, activities[i].ID)
		if err != nil {
			logging.Error().Err(err).Int64("activity", activities[i].ID).Msg("Skipping kudos for activity")
			continue
		}
		all = append(all, kudos...)
	}
	logging.Info().Int("count", len(all)).Int("activities", len(activities)).Msg("Kudos fetched")
	return all
}

// persistKudos writes all accumulated kudos with the same
// batch-then-fallback policy as activities.
func (o *Orchestrator) persistKudos(ctx context.Context, conn Conn, kudos []models.KudoRecord) int {
	if len(kudos) == 0 {
		return 0
	}

	recs := make([]database.Record, 0, len(kudos))
	for i := range kudos {
		recs = append(recs, database.KudoRecord(&kudos[i]))
	}

	n, err := conn.InsertMany(ctx, database.TableKudos, recs)
	if err == nil {
		logging.Info().Int("count", n).Msg("Kudos persisted (batch)")
		return n
	}

	logging.Warn().Err(err).Msg("Batch insert of kudos failed, falling back to per-row inserts")
	count := 0
	for i := range recs {
		if err := conn.Insert(ctx, database.TableKudos, recs[i]); err != nil {
			metrics.RowsSkipped.WithLabelValues(database.TableKudos).Inc()
			logging.Error().Err(err).Int64("activity", kudos[i].ActivityID).Msg("Skipping kudos row")
			continue
		}
		count++
	}
	logging.Info().Int("count", count).Int("skipped", len(recs)-count).Msg("Kudos persisted (per-row)")
	return count
}
