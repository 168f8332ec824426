// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

// Package auth manages the OAuth2 token lifecycle: durable storage of the
// token bundle, expiry detection, refresh-grant renewal and the one-time
// authorization-code exchange.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/jfdelafuente/strava-sync/internal/models"
)

// ErrNoToken indicates the token file does not exist yet. The caller
// should run the authorize flow to bootstrap it.
var ErrNoToken = errors.New("auth: token file not found")

// ParseError indicates the token file exists but does not contain a
// valid token bundle. The file is left untouched.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("auth: malformed token file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Store persists the OAuth2 token bundle as a single JSON file. The file
// holds exactly one bundle; writing replaces it atomically from the
// reader's point of view (whole-file write, no partial updates).
type Store struct {
	path string
}

// NewStore creates a token store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the token bundle from disk. Returns ErrNoToken when the file
// does not exist and a ParseError when it cannot be decoded.
func (s *Store) Load() (*models.TokenRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoToken, s.path)
		}
		return nil, fmt.Errorf("auth: failed to read token file %s: %w", s.path, err)
	}

	var tok models.TokenRecord
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, &ParseError{Path: s.path, Err: err}
	}
	return &tok, nil
}

// Save writes the token bundle, replacing any previous contents. The
// parent directory is created on demand so a fresh checkout works without
// manual setup.
func (s *Store) Save(tok *models.TokenRecord) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("auth: failed to create token directory %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: failed to encode token: %w", err)
	}

	// Tokens are credentials: owner-only permissions.
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("auth: failed to write token file %s: %w", s.path, err)
	}
	return nil
}
