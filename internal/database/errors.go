// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

package database

import (
	"errors"
	"fmt"
)

// ConnectionError indicates the storage backend could not be opened or
// reached. Always fatal to the run that hit it.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database: failed to connect to %s backend: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError wraps a failed statement with enough context to log it
// without string-matching.
type QueryError struct {
	Op    string // "execute", "fetch", "insert", "insert_many"
	Table string // empty for raw statements
	Err   error
}

func (e *QueryError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("database: %s on %s failed: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("database: %s failed: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err originated in backend connection
// setup rather than statement execution.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}
