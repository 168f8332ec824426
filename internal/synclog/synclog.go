// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

// Package synclog maintains the append-only CSV sync log the incremental
// watermark is derived from. Each completed run appends one row with the
// run timestamp and the number of activities fetched; the watermark is
// the timestamp of the last row.
package synclog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jfdelafuente/strava-sync/internal/logging"
)

// timestampLayout is the on-disk timestamp format. The trailing Z is a
// literal marker, not a zone designator: timestamps are parsed in the
// host's local zone. Changing this would shift the watermark for existing
// log files, so it stays.
const timestampLayout = "2006-01-02T15:04:05Z"

// timestampColumn is the header column the watermark is read from.
const timestampColumn = "start_date_local"

// header is written when a log file is first created.
var header = []string{timestampColumn, "num_activities"}

// ErrNoWatermark indicates no usable previous sync record exists: the log
// file is absent, empty, or malformed. The caller falls back to a full
// sync from the beginning of history.
var ErrNoWatermark = errors.New("synclog: no previous sync record")

// Log is a handle on one sync log file.
type Log struct {
	path string
}

// New creates a handle on the log file at path. The file itself is
// created lazily on the first Append.
func New(path string) *Log {
	return &Log{path: path}
}

// Path returns the backing file path.
func (l *Log) Path() string { return l.path }

// LastTimestamp returns the raw timestamp string of the most recent sync
// record. Returns ErrNoWatermark when the log is absent or holds no data
// rows.
func (l *Log) LastTimestamp() (string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNoWatermark, l.path)
		}
		return "", fmt.Errorf("synclog: failed to read %s: %w", l.path, err)
	}

	lines := splitLines(string(data))
	if len(lines) < 2 {
		return "", fmt.Errorf("%w: %s has no data rows", ErrNoWatermark, l.path)
	}

	// The column position comes from the header row, not a fixed index,
	// so older log files with extra columns keep working.
	cols := strings.Split(lines[0], ",")
	idx := -1
	for i, c := range cols {
		if strings.TrimSpace(c) == timestampColumn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("%w: %s header has no %s column", ErrNoWatermark, l.path, timestampColumn)
	}

	last := strings.Split(lines[len(lines)-1], ",")
	if idx >= len(last) {
		return "", fmt.Errorf("%w: last row of %s is short", ErrNoWatermark, l.path)
	}
	return strings.TrimSpace(last[idx]), nil
}

// LastSyncEpoch returns the watermark as a Unix epoch, or 0 when no
// usable previous record exists (full sync). A log that cannot be read
// is treated the same as a missing one: the run proceeds from the
// beginning of history instead of aborting. The timestamp is
// interpreted in the host's local zone; see timestampLayout.
func (l *Log) LastSyncEpoch() int64 {
	ts, err := l.LastTimestamp()
	if err != nil {
		if errors.Is(err, ErrNoWatermark) {
			logging.Warn().Str("path", l.path).Msg("No previous sync record, performing full sync")
		} else {
			logging.Warn().Str("path", l.path).Err(err).Msg("Could not read sync log, performing full sync")
		}
		return 0
	}

	epoch, err := TimestampToUnix(ts)
	if err != nil {
		logging.Warn().Str("timestamp", ts).Err(err).Msg("Unparseable watermark, performing full sync")
		return 0
	}

	logging.Info().Str("last_sync", ts).Int64("epoch", epoch).Msg("Resuming from last sync")
	return epoch
}

// Append records one completed run: the given timestamp and the number of
// activities fetched. Creates the file with its header on first use. The
// count reflects fetched activities, persisted or not.
func (l *Log) Append(timestamp string, numActivities int) error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("synclog: failed to create log directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("synclog: failed to open %s: %w", l.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("synclog: failed to stat %s: %w", l.path, err)
	}
	if info.Size() == 0 {
		if _, err := fmt.Fprintln(f, strings.Join(header, ",")); err != nil {
			return fmt.Errorf("synclog: failed to write header: %w", err)
		}
	}

	if _, err := fmt.Fprintf(f, "%s,%d\n", timestamp, numActivities); err != nil {
		return fmt.Errorf("synclog: failed to append record: %w", err)
	}

	logging.Info().Str("timestamp", timestamp).Int("activities", numActivities).Msg("Sync log updated")
	return nil
}

// AppendNow records a completed run stamped with the current time.
func (l *Log) AppendNow(numActivities int) error {
	return l.Append(FormatTimestamp(time.Now()), numActivities)
}

// FormatTimestamp renders t in the on-disk timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// TimestampToUnix converts an on-disk timestamp string to a Unix epoch,
// interpreting it in the host's local zone.
func TimestampToUnix(ts string) (int64, error) {
	t, err := time.ParseInLocation(timestampLayout, ts, time.Local)
	if err != nil {
		return 0, fmt.Errorf("synclog: invalid timestamp %q: %w", ts, err)
	}
	return t.Unix(), nil
}

// splitLines splits on newlines, dropping empty trailing lines so an
// append-generated file (which ends in a newline) reads cleanly.
func splitLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := raw[:0]
	for _, line := range raw {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
