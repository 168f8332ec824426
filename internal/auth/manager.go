// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/jfdelafuente/strava-sync/internal/config"
	"github.com/jfdelafuente/strava-sync/internal/logging"
	"github.com/jfdelafuente/strava-sync/internal/metrics"
	"github.com/jfdelafuente/strava-sync/internal/models"
)

const (
	// expiryMargin is the safety window before the recorded expiry at
	// which a token is already treated as expired. Covers clock skew and
	// the time the sync itself takes.
	expiryMargin = 300 // seconds

	// tokenTimeout bounds every request against the token endpoint.
	tokenTimeout = 10 * time.Second
)

// AuthError is a failure to obtain or renew credentials. It is always
// fatal to the current run.
type AuthError struct {
	Op  string // "refresh" or "authorize"
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Manager owns the token lifecycle for a single athlete. It composes the
// durable Store with the remote token endpoint.
//
// Thread Safety: not safe for concurrent use; the pipeline runs one sync
// at a time.
type Manager struct {
	store  *Store
	cfg    *config.StravaConfig
	client *http.Client

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager creates a token manager using the application credentials
// from cfg and the given durable store.
func NewManager(cfg *config.StravaConfig, store *Store) *Manager {
	return &Manager{
		store:  store,
		cfg:    cfg,
		client: &http.Client{Timeout: tokenTimeout},
		now:    time.Now,
	}
}

// authURL returns the configured token endpoint, falling back to the
// public one.
func (m *Manager) authURL() string {
	if m.cfg.AuthURL != "" {
		return m.cfg.AuthURL
	}
	return config.DefaultStravaAuthURL
}

// IsExpired reports whether the token must be refreshed before use. A
// token with no recorded expiry or no access token counts as expired.
func (m *Manager) IsExpired(tok *models.TokenRecord) bool {
	if tok == nil || tok.AccessToken == "" || tok.ExpiresAt == 0 {
		return true
	}
	return tok.ExpiresAt-m.now().Unix() < expiryMargin
}

// GetValidToken returns an access token usable right now, refreshing and
// persisting the bundle first when the stored one is expired or about to
// expire.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	tok, err := m.store.Load()
	if err != nil {
		return "", err
	}

	if !m.IsExpired(tok) {
		return tok.AccessToken, nil
	}

	logging.Info().Int64("expires_at", tok.ExpiresAt).Msg("Access token expired, refreshing")
	renewed, err := m.Refresh(ctx, tok)
	if err != nil {
		return "", err
	}
	return renewed.AccessToken, nil
}

// Refresh exchanges the stored refresh token for a new bundle and
// persists it. The previous bundle stays on disk untouched unless the
// endpoint returned a complete, valid replacement: validation happens
// before the write, never after.
func (m *Manager) Refresh(ctx context.Context, tok *models.TokenRecord) (*models.TokenRecord, error) {
	if tok == nil || tok.RefreshToken == "" {
		return nil, &AuthError{Op: "refresh", Err: fmt.Errorf("no refresh token available")}
	}
	if m.cfg.ClientID == "" || m.cfg.ClientSecret == "" {
		return nil, &AuthError{Op: "refresh", Err: fmt.Errorf("client credentials not configured")}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)
	form.Set("refresh_token", tok.RefreshToken)

	renewed, err := m.tokenRequest(ctx, "refresh", form)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, err
	}

	if err := m.store.Save(renewed); err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	logging.Info().Int64("expires_at", renewed.ExpiresAt).Msg("Access token refreshed")
	return renewed, nil
}

// Authenticate performs the one-time authorization-code exchange that
// bootstraps the token file. The code comes from the browser redirect
// after the user approves the application.
func (m *Manager) Authenticate(ctx context.Context, code string) (*models.TokenRecord, error) {
	if code == "" {
		return nil, &AuthError{Op: "authorize", Err: fmt.Errorf("authorization code is empty")}
	}
	if m.cfg.ClientID == "" || m.cfg.ClientSecret == "" {
		return nil, &AuthError{Op: "authorize", Err: fmt.Errorf("client credentials not configured")}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)
	form.Set("code", code)

	tok, err := m.tokenRequest(ctx, "authorize", form)
	if err != nil {
		return nil, err
	}

	if err := m.store.Save(tok); err != nil {
		return nil, err
	}
	logging.Info().Int64("expires_at", tok.ExpiresAt).Msg("Authorization complete, token stored")
	return tok, nil
}

// tokenRequest posts one grant to the token endpoint and validates the
// returned bundle before handing it back.
func (m *Manager) tokenRequest(ctx context.Context, op string, form url.Values) (*models.TokenRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.authURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &AuthError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Op: op, Err: fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode)}
	}

	var tok models.TokenRecord
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, &AuthError{Op: op, Err: fmt.Errorf("failed to decode token response: %w", err)}
	}

	// A bundle missing any of these fields must never reach the store.
	if tok.AccessToken == "" || tok.RefreshToken == "" || tok.ExpiresAt == 0 {
		return nil, &AuthError{Op: op, Err: fmt.Errorf("token response incomplete")}
	}

	return &tok, nil
}
