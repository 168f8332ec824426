// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

/*
client.go - Strava REST API Client

This file provides the Client struct and HTTP communication layer for the
two read-only resources this system consumes:

  - GET /athlete/activities?per_page&page&after (bearer auth)
  - GET /activities/{id}/kudos?per_page&page    (bearer auth)

Both endpoints are paginated by page number only; the client accumulates
pages into one in-memory slice and stops at the first empty page. HTTP
failures are classified into typed errors (see errors.go) so the sync
orchestrator can decide retry vs. abort. The client itself never retries:
a 429 surfaces immediately.
*/

//nolint:staticcheck // File documentation, not package doc
package strava

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/jfdelafuente/strava-sync/internal/config"
	"github.com/jfdelafuente/strava-sync/internal/logging"
	"github.com/jfdelafuente/strava-sync/internal/metrics"
	"github.com/jfdelafuente/strava-sync/internal/models"
)

const (
	// activitiesPageSize is the per_page value for the activities endpoint.
	activitiesPageSize = 200

	// kudosPageSize is the per_page value for the kudos endpoint.
	kudosPageSize = 30

	// fetchTimeout bounds every activity/kudos request.
	fetchTimeout = 30 * time.Second
)

// maxErrorBodySize limits the response body read for error reporting.
// Prevents unbounded allocation when a proxy returns a large error page.
const maxErrorBodySize = 64 * 1024 // 64KB

// readBodyForError reads the response body for error reporting (max 64KB).
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}

// ActivityClient is the interface the sync orchestrator consumes. It is
// implemented by Client for production use and by fakes in tests.
type ActivityClient interface {
	FetchActivities(ctx context.Context, accessToken string, sinceEpoch int64) ([]models.ActivityRecord, error)
	FetchKudos(ctx context.Context, accessToken string, activityID int64) ([]models.KudoRecord, error)
}

// Client handles communication with the Strava v3 REST API.
//
// Thread Safety: safe for concurrent use; each request creates its own
// http.Request and the underlying http.Client is concurrency-safe.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Strava API client from configuration. The base URL
// is overridable for tests; it defaults to the public API endpoint.
func NewClient(cfg *config.StravaConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultStravaBaseURL
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: fetchTimeout,
		},
	}
}

// apiActivity is the wire shape of one activity in the paginated response.
// This struct is the single point of coupling to Strava's activity JSON.
type apiActivity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	StartDateLocal     string    `json:"start_date_local"`
	Type               string    `json:"type"`
	Distance           float64   `json:"distance"`
	MovingTime         float64   `json:"moving_time"`
	ElapsedTime        float64   `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	EndLatLng          []float64 `json:"end_latlng"`
	KudosCount         int       `json:"kudos_count"`
	ExternalID         string    `json:"external_id"`
}

// toRecord maps the wire shape to the storage-shaped record, coercing the
// end location pair to its textual representation.
func (a *apiActivity) toRecord() models.ActivityRecord {
	return models.ActivityRecord{
		ID:                 a.ID,
		Name:               a.Name,
		StartDateLocal:     a.StartDateLocal,
		Type:               a.Type,
		Distance:           a.Distance,
		MovingTime:         a.MovingTime,
		ElapsedTime:        a.ElapsedTime,
		TotalElevationGain: a.TotalElevationGain,
		EndLatLng:          formatLatLng(a.EndLatLng),
		KudosCount:         a.KudosCount,
		ExternalID:         a.ExternalID,
	}
}

// formatLatLng renders the coordinate pair as "[lat, lng]"; an absent or
// empty pair renders as "[]".
func formatLatLng(pair []float64) string {
	if len(pair) == 0 {
		return "[]"
	}
	out := "["
	for i, v := range pair {
		if i > 0 {
			out += ", "
		}
		out += strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out + "]"
}

// apiKudoer is the wire shape of one kudos giver. The paginated kudos
// response exposes no stable kudos id.
type apiKudoer struct {
	ResourceState int    `json:"resource_state"`
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
}

func (k *apiKudoer) toRecord(activityID int64) models.KudoRecord {
	resourceState := ""
	if k.ResourceState != 0 {
		resourceState = strconv.Itoa(k.ResourceState)
	}
	return models.KudoRecord{
		ResourceState: resourceState,
		FirstName:     k.FirstName,
		LastName:      k.LastName,
		ActivityID:    activityID,
	}
}

// FetchActivities pages through the athlete activities endpoint and
// returns all records at once. If sinceEpoch > 0 it is passed as the
// `after` lower-bound filter on every page request. An empty overall
// result is valid and distinct from failure.
func (c *Client) FetchActivities(ctx context.Context, accessToken string, sinceEpoch int64) ([]models.ActivityRecord, error) {
	endpoint := "athlete/activities"
	var records []models.ActivityRecord

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("per_page", strconv.Itoa(activitiesPageSize))
		params.Set("page", strconv.Itoa(page))
		if sinceEpoch > 0 {
			params.Set("after", strconv.FormatInt(sinceEpoch, 10))
		}

		var batch []apiActivity
		if err := c.getJSON(ctx, endpoint, endpoint, params, accessToken, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		logging.Debug().Int("page", page).Int("count", len(batch)).Msg("Fetched activities page")
		for i := range batch {
			records = append(records, batch[i].toRecord())
		}
	}

	logging.Info().Int("total", len(records)).Int64("since", sinceEpoch).Msg("Fetched activities")
	return records, nil
}

// FetchKudos pages through the kudos endpoint for one activity. An HTTP
// 404 yields an empty result rather than an error: activities can be
// deleted on the remote side between the activity fetch and this call.
func (c *Client) FetchKudos(ctx context.Context, accessToken string, activityID int64) ([]models.KudoRecord, error) {
	endpoint := fmt.Sprintf("activities/%d/kudos", activityID)
	var records []models.KudoRecord

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("per_page", strconv.Itoa(kudosPageSize))
		params.Set("page", strconv.Itoa(page))

		var batch []apiKudoer
		err := c.getJSON(ctx, endpoint, "activities/{id}/kudos", params, accessToken, &batch)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				logging.Warn().Int64("activity", activityID).Msg("Activity not found, treating as zero kudos")
				return nil, nil
			}
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			records = append(records, batch[i].toRecord(activityID))
		}
	}

	logging.Debug().Int64("activity", activityID).Int("count", len(records)).Msg("Fetched kudos")
	return records, nil
}

// getJSON performs one bearer-authenticated GET and decodes the JSON body
// into result. Non-2xx statuses and transport failures come back as typed
// APIErrors. metricLabel is the endpoint as recorded in metrics, with
// path parameters collapsed to keep label cardinality bounded.
func (c *Client) getJSON(ctx context.Context, endpoint, metricLabel string, params url.Values, accessToken string, result interface{}) error {
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	defer metrics.ObserveAPIRequest(metricLabel, time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		cerr := classifyTransportError(endpoint, err)
		metrics.APIErrors.WithLabelValues(metricLabel, Classify(cerr).String()).Inc()
		return cerr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serr := classifyStatus(endpoint, resp.StatusCode, readBodyForError(resp.Body))
		metrics.APIErrors.WithLabelValues(metricLabel, Classify(serr).String()).Inc()
		return serr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
