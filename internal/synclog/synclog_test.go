// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package synclog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func tempLog(t *testing.T) *Log {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "data", "strava_activities.log"))
}

func TestLastTimestampMissingFile(t *testing.T) {
	l := tempLog(t)
	_, err := l.LastTimestamp()
	if !errors.Is(err, ErrNoWatermark) {
		t.Errorf("LastTimestamp() error = %v, want ErrNoWatermark", err)
	}
}

func TestLastTimestampHeaderOnly(t *testing.T) {
	l := tempLog(t)
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(l.Path(), []byte("start_date_local,num_activities\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := l.LastTimestamp()
	if !errors.Is(err, ErrNoWatermark) {
		t.Errorf("LastTimestamp() error = %v, want ErrNoWatermark", err)
	}
}

func TestAppendThenLastTimestamp(t *testing.T) {
	l := tempLog(t)

	if err := l.Append("2020-03-31T17:18:15Z", 12); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Append("2021-06-01T09:00:00Z", 3); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := l.LastTimestamp()
	if err != nil {
		t.Fatalf("LastTimestamp() error = %v", err)
	}
	if got != "2021-06-01T09:00:00Z" {
		t.Errorf("LastTimestamp() = %q, want %q", got, "2021-06-01T09:00:00Z")
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("log has %d lines, want 3 (header + 2 records)", len(lines))
	}
	if lines[0] != "start_date_local,num_activities" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "2021-06-01T09:00:00Z,3" {
		t.Errorf("last line = %q", lines[2])
	}
}

func TestAppendDoesNotDuplicateHeader(t *testing.T) {
	l := tempLog(t)
	if err := l.Append("2020-03-31T17:18:15Z", 1); err != nil {
		t.Fatal(err)
	}
	if err := l.Append("2020-04-01T17:18:15Z", 2); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "start_date_local"); n != 1 {
		t.Errorf("header appears %d times, want 1", n)
	}
}

func TestLastTimestampPositionalColumn(t *testing.T) {
	// Older log files carry extra columns; the watermark column is found
	// by header name, not fixed position.
	l := tempLog(t)
	if err := os.MkdirAll(filepath.Dir(l.Path()), 0o750); err != nil {
		t.Fatal(err)
	}
	content := "run_id,start_date_local,num_activities\n7,2019-12-24T08:00:00Z,99\n"
	if err := os.WriteFile(l.Path(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := l.LastTimestamp()
	if err != nil {
		t.Fatalf("LastTimestamp() error = %v", err)
	}
	if got != "2019-12-24T08:00:00Z" {
		t.Errorf("LastTimestamp() = %q, want %q", got, "2019-12-24T08:00:00Z")
	}
}

func TestTimestampToUnixLocalZone(t *testing.T) {
	ts := "2020-03-31T17:18:15Z"
	got, err := TimestampToUnix(ts)
	if err != nil {
		t.Fatalf("TimestampToUnix() error = %v", err)
	}

	// The trailing Z is literal: the wall-clock value is interpreted in
	// the host's local zone.
	want := time.Date(2020, 3, 31, 17, 18, 15, 0, time.Local).Unix()
	if got != want {
		t.Errorf("TimestampToUnix(%q) = %d, want %d", ts, got, want)
	}
}

func TestTimestampToUnixInvalid(t *testing.T) {
	if _, err := TimestampToUnix("not-a-timestamp"); err == nil {
		t.Error("TimestampToUnix() error = nil, want parse error")
	}
}

func TestLastSyncEpoch(t *testing.T) {
	t.Run("no log file yields zero", func(t *testing.T) {
		if epoch := tempLog(t).LastSyncEpoch(); epoch != 0 {
			t.Errorf("LastSyncEpoch() = %d, want 0", epoch)
		}
	})

	t.Run("existing record yields its epoch", func(t *testing.T) {
		l := tempLog(t)
		if err := l.Append("2020-03-31T17:18:15Z", 5); err != nil {
			t.Fatal(err)
		}

		want := time.Date(2020, 3, 31, 17, 18, 15, 0, time.Local).Unix()
		if epoch := l.LastSyncEpoch(); epoch != want {
			t.Errorf("LastSyncEpoch() = %d, want %d", epoch, want)
		}
	})

	t.Run("garbage watermark falls back to full sync", func(t *testing.T) {
		l := tempLog(t)
		if err := os.MkdirAll(filepath.Dir(l.Path()), 0o750); err != nil {
			t.Fatal(err)
		}
		content := "start_date_local,num_activities\ngarbage,1\n"
		if err := os.WriteFile(l.Path(), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}

		if epoch := l.LastSyncEpoch(); epoch != 0 {
			t.Errorf("LastSyncEpoch() = %d, want 0", epoch)
		}
	})

	t.Run("unreadable log falls back to full sync", func(t *testing.T) {
		// Log path points at a directory: the read fails with something
		// other than ErrNotExist.
		l := New(t.TempDir())
		if _, err := l.LastTimestamp(); err == nil || errors.Is(err, ErrNoWatermark) {
			t.Fatalf("LastTimestamp() error = %v, want a read failure", err)
		}
		if epoch := l.LastSyncEpoch(); epoch != 0 {
			t.Errorf("LastSyncEpoch() = %d, want 0", epoch)
		}
	})
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2021, 6, 1, 9, 0, 0, 0, time.Local)
	if got := FormatTimestamp(ts); got != "2021-06-01T09:00:00Z" {
		t.Errorf("FormatTimestamp() = %q, want %q", got, "2021-06-01T09:00:00Z")
	}
}
