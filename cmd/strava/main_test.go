// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package main

import (
	"testing"
	"time"
)

func TestParseSince(t *testing.T) {
	t.Run("calendar date", func(t *testing.T) {
		got, err := parseSince("2024-01-01")
		if err != nil {
			t.Fatalf("parseSince() error = %v", err)
		}
		want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local).Unix()
		if got != want {
			t.Errorf("parseSince(2024-01-01) = %d, want %d", got, want)
		}
	})

	t.Run("unix epoch", func(t *testing.T) {
		got, err := parseSince("1704067200")
		if err != nil {
			t.Fatalf("parseSince() error = %v", err)
		}
		if got != 1704067200 {
			t.Errorf("parseSince(1704067200) = %d", got)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := parseSince("yesterday"); err == nil {
			t.Error("parseSince(yesterday) error = nil, want error")
		}
		if _, err := parseSince("2024-13-45"); err == nil {
			t.Error("parseSince(2024-13-45) error = nil, want error")
		}
	})
}
