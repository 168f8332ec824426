// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jfdelafuente/strava-sync/internal/config"
	"github.com/jfdelafuente/strava-sync/internal/models"
)

func newTestManager(t *testing.T, authURL string) (*Manager, *Store) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "strava_tokens.json"))
	cfg := &config.StravaConfig{
		ClientID:     "123",
		ClientSecret: "sekret",
		AuthURL:      authURL,
	}
	return NewManager(cfg, store), store
}

func writeToken(t *testing.T, store *Store, tok *models.TokenRecord) {
	t.Helper()
	if err := store.Save(tok); err != nil {
		t.Fatalf("failed to seed token file: %v", err)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	_, err := store.Load()
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Load() error = %v, want ErrNoToken", err)
	}
}

func TestStoreLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "strava_tokens.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewStore(path).Load()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("Load() error = %v, want *ParseError", err)
	}
}

func TestStoreSaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "json", "strava_tokens.json")
	store := NewStore(path)

	if err := store.Save(&models.TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: 1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	tok, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after Save() error = %v", err)
	}
	if tok.AccessToken != "a" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "a")
	}
}

func TestIsExpired(t *testing.T) {
	m, _ := newTestManager(t, "")
	now := time.Unix(1700000000, 0)
	m.now = func() time.Time { return now }

	tests := []struct {
		name string
		tok  *models.TokenRecord
		want bool
	}{
		{"nil token", nil, true},
		{"no access token", &models.TokenRecord{RefreshToken: "r", ExpiresAt: now.Unix() + 10000}, true},
		{"no expiry recorded", &models.TokenRecord{AccessToken: "a", RefreshToken: "r"}, true},
		{"already expired", &models.TokenRecord{AccessToken: "a", ExpiresAt: now.Unix() - 1}, true},
		{"inside safety margin", &models.TokenRecord{AccessToken: "a", ExpiresAt: now.Unix() + 100}, true},
		{"exactly at margin", &models.TokenRecord{AccessToken: "a", ExpiresAt: now.Unix() + 300}, false},
		{"comfortably valid", &models.TokenRecord{AccessToken: "a", ExpiresAt: now.Unix() + 10000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.IsExpired(tt.tok); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetValidTokenSkipsRefreshWhenFresh(t *testing.T) {
	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
	}))
	defer srv.Close()

	m, store := newTestManager(t, srv.URL)
	writeToken(t, store, &models.TokenRecord{
		AccessToken:  "fresh",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Unix() + 10000,
	})

	got, err := m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if got != "fresh" {
		t.Errorf("GetValidToken() = %q, want %q", got, "fresh")
	}
	if refreshCalls != 0 {
		t.Errorf("token endpoint called %d times, want 0", refreshCalls)
	}
}

func TestGetValidTokenRefreshesExpired(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotForm = map[string]string{
			"grant_type":    r.PostFormValue("grant_type"),
			"client_id":     r.PostFormValue("client_id"),
			"refresh_token": r.PostFormValue("refresh_token"),
		}
		fmt.Fprintf(w, `{"token_type":"Bearer","access_token":"new-access","refresh_token":"new-refresh","expires_at":%d,"expires_in":21600}`,
			time.Now().Unix()+21600)
	}))
	defer srv.Close()

	m, store := newTestManager(t, srv.URL)
	writeToken(t, store, &models.TokenRecord{
		AccessToken:  "stale",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Unix() + 100, // inside the safety margin
	})

	got, err := m.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if got != "new-access" {
		t.Errorf("GetValidToken() = %q, want %q", got, "new-access")
	}
	if gotForm["grant_type"] != "refresh_token" {
		t.Errorf("grant_type = %q, want %q", gotForm["grant_type"], "refresh_token")
	}
	if gotForm["refresh_token"] != "old-refresh" {
		t.Errorf("refresh_token = %q, want %q", gotForm["refresh_token"], "old-refresh")
	}

	// The renewed bundle must be persisted, rotation included.
	onDisk, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after refresh error = %v", err)
	}
	if onDisk.RefreshToken != "new-refresh" {
		t.Errorf("persisted RefreshToken = %q, want %q", onDisk.RefreshToken, "new-refresh")
	}
}

func TestRefreshIncompleteResponseLeavesFileUntouched(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing access_token", `{"refresh_token":"r2","expires_at":9999999999}`},
		{"missing refresh_token", `{"access_token":"a2","expires_at":9999999999}`},
		{"missing expires_at", `{"access_token":"a2","refresh_token":"r2"}`},
		{"not json", `<html>gateway error</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			m, store := newTestManager(t, srv.URL)
			writeToken(t, store, &models.TokenRecord{
				AccessToken:  "stale",
				RefreshToken: "r1",
				ExpiresAt:    42,
			})
			before, err := os.ReadFile(store.Path())
			if err != nil {
				t.Fatal(err)
			}

			_, err = m.GetValidToken(context.Background())
			var authErr *AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("GetValidToken() error = %v, want *AuthError", err)
			}

			after, err := os.ReadFile(store.Path())
			if err != nil {
				t.Fatal(err)
			}
			if string(before) != string(after) {
				t.Error("token file changed after failed refresh")
			}
		})
	}
}

func TestRefreshErrorCases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad Request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	t.Run("endpoint rejects grant", func(t *testing.T) {
		m, store := newTestManager(t, srv.URL)
		writeToken(t, store, &models.TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: 42})

		_, err := m.GetValidToken(context.Background())
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("error = %v, want *AuthError", err)
		}
		if authErr.Op != "refresh" {
			t.Errorf("Op = %q, want %q", authErr.Op, "refresh")
		}
	})

	t.Run("no refresh token stored", func(t *testing.T) {
		m, store := newTestManager(t, srv.URL)
		writeToken(t, store, &models.TokenRecord{AccessToken: "a", ExpiresAt: 42})

		_, err := m.GetValidToken(context.Background())
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("error = %v, want *AuthError", err)
		}
	})

	t.Run("missing client credentials", func(t *testing.T) {
		store := NewStore(filepath.Join(t.TempDir(), "tok.json"))
		m := NewManager(&config.StravaConfig{AuthURL: srv.URL}, store)
		writeToken(t, store, &models.TokenRecord{AccessToken: "a", RefreshToken: "r", ExpiresAt: 42})

		_, err := m.GetValidToken(context.Background())
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("error = %v, want *AuthError", err)
		}
	})
}

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if got := r.PostFormValue("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want %q", got, "authorization_code")
		}
		if got := r.PostFormValue("code"); got != "abc123" {
			t.Errorf("code = %q, want %q", got, "abc123")
		}
		fmt.Fprint(w, `{"token_type":"Bearer","access_token":"first-access","refresh_token":"first-refresh","expires_at":9999999999}`)
	}))
	defer srv.Close()

	m, store := newTestManager(t, srv.URL)

	tok, err := m.Authenticate(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if tok.AccessToken != "first-access" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "first-access")
	}

	onDisk, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after Authenticate() error = %v", err)
	}
	if onDisk.RefreshToken != "first-refresh" {
		t.Errorf("persisted RefreshToken = %q, want %q", onDisk.RefreshToken, "first-refresh")
	}
}

func TestAuthenticateEmptyCode(t *testing.T) {
	m, _ := newTestManager(t, "")
	_, err := m.Authenticate(context.Background(), "")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want *AuthError", err)
	}
}
