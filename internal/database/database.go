// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

// Package database is the storage gateway: one Store per configured
// backend (embedded DuckDB file or client/server PostgreSQL), exposing
// parameterized execute, batch insert and query-fetch operations over a
// single acquired connection.
//
// Statements are written with `?` placeholders throughout; the dialect
// rewrites them for backends that number their parameters.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jfdelafuente/strava-sync/internal/config"
	"github.com/jfdelafuente/strava-sync/internal/logging"
)

// Open selects and opens the backend named by cfg.Backend.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return OpenPostgres(&cfg.Postgres)
	case config.BackendDuckDB:
		return OpenDuckDB(cfg)
	default:
		return nil, &ConnectionError{
			Backend: cfg.Backend,
			Err:     fmt.Errorf("unknown backend %q", cfg.Backend),
		}
	}
}

// dialect captures the per-backend SQL differences. Everything else is
// shared database/sql code.
type dialect struct {
	name            string
	numberedParams  bool // rewrite ? to $1..$n
	createKudosDDL  string
	createSequence  string // empty when the backend has native autoincrement
	doublePrecision string // floating-point column type name
}

// Store is a handle on one configured storage backend.
//
// Thread Safety: the underlying *sql.DB is safe for concurrent use; the
// sync pipeline still acquires one dedicated connection per run.
type Store struct {
	db      *sql.DB
	dialect dialect
	label   string
}

// Label returns the backend label reported in sync results ("duckdb" or
// "postgres").
func (s *Store) Label() string { return s.label }

// Ping verifies the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &ConnectionError{Backend: s.label, Err: err}
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	logging.Debug().Str("backend", s.label).Msg("Closing database")
	return s.db.Close()
}

// Acquire pins one connection from the pool. The sync pipeline performs
// its whole run on a single connection so the batch attempt and the
// per-row fallback observe the same session state.
func (s *Store) Acquire(ctx context.Context) (*Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, &ConnectionError{Backend: s.label, Err: err}
	}
	return &Conn{conn: conn, dialect: s.dialect}, nil
}

// rebind rewrites `?` placeholders to the dialect's parameter syntax.
// Statements in this codebase never contain a literal question mark, so a
// plain scan suffices.
func (d dialect) rebind(stmt string) string {
	if !d.numberedParams {
		return stmt
	}
	var b strings.Builder
	b.Grow(len(stmt) + 8)
	n := 0
	for _, r := range stmt {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Conn is one pinned connection with the gateway operations the
// orchestrator and reports consume. Not safe for concurrent use.
type Conn struct {
	conn    *sql.Conn
	dialect dialect
}

// Release returns the connection to the pool.
func (c *Conn) Release() error {
	return c.conn.Close()
}

// Execute runs one statement in auto-commit mode and returns the
// affected row count.
func (c *Conn) Execute(ctx context.Context, stmt string, args ...interface{}) (int64, error) {
	res, err := c.conn.ExecContext(ctx, c.dialect.rebind(stmt), args...)
	if err != nil {
		return 0, &QueryError{Op: "execute", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // backends without row counts still succeeded
	}
	return affected, nil
}

// ExecuteMany runs one statement once per parameter set inside a
// single transaction: all executions land or none do. Returns the
// number of parameter sets executed.
func (c *Conn) ExecuteMany(ctx context.Context, stmt string, paramsList [][]interface{}) (int, error) {
	if len(paramsList) == 0 {
		return 0, nil
	}

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, &QueryError{Op: "execute_many", Err: err}
	}

	prepared, err := tx.PrepareContext(ctx, c.dialect.rebind(stmt))
	if err != nil {
		_ = tx.Rollback()
		return 0, &QueryError{Op: "execute_many", Err: err}
	}

	for i := range paramsList {
		if _, err := prepared.ExecContext(ctx, paramsList[i]...); err != nil {
			_ = prepared.Close()
			_ = tx.Rollback()
			return 0, &QueryError{Op: "execute_many", Err: err}
		}
	}

	if err := prepared.Close(); err != nil {
		_ = tx.Rollback()
		return 0, &QueryError{Op: "execute_many", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &QueryError{Op: "execute_many", Err: err}
	}
	return len(paramsList), nil
}

// Update writes the given column values to every row matching the where
// clause and returns the affected row count. Columns are applied in
// sorted order so the statement text is deterministic for a given
// update set.
func (c *Conn) Update(ctx context.Context, table string, updates Row, where string, whereArgs ...interface{}) (int64, error) {
	if len(updates) == 0 {
		return 0, &QueryError{Op: "update", Table: table, Err: fmt.Errorf("no columns to update")}
	}

	cols := make([]string, 0, len(updates))
	for col := range updates {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]interface{}, 0, len(cols)+len(whereArgs))
	for _, col := range cols {
		args = append(args, updates[col])
	}
	args = append(args, whereArgs...)

	stmt := buildUpdate(table, cols, where)
	res, err := c.conn.ExecContext(ctx, c.dialect.rebind(stmt), args...)
	if err != nil {
		return 0, &QueryError{Op: "update", Table: table, Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // backends without row counts still succeeded
	}
	return affected, nil
}

// Fetch runs a query and returns all rows keyed by column name.
func (c *Conn) Fetch(ctx context.Context, stmt string, args ...interface{}) ([]Row, error) {
	rows, err := c.conn.QueryContext(ctx, c.dialect.rebind(stmt), args...)
	if err != nil {
		return nil, &QueryError{Op: "fetch", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Op: "fetch", Err: err}
	}

	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		scanTargets := make([]interface{}, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, &QueryError{Op: "fetch", Err: err}
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Op: "fetch", Err: err}
	}
	return out, nil
}

// FetchOne runs a query and returns the first row, or nil when the
// result set is empty.
func (c *Conn) FetchOne(ctx context.Context, stmt string, args ...interface{}) (Row, error) {
	rows, err := c.Fetch(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Insert writes one record in auto-commit mode. Used by the per-row
// fallback path, where each row must commit or fail independently.
func (c *Conn) Insert(ctx context.Context, table string, rec Record) error {
	stmt := buildInsert(table, rec.Columns)
	if _, err := c.conn.ExecContext(ctx, c.dialect.rebind(stmt), rec.Values...); err != nil {
		return &QueryError{Op: "insert", Table: table, Err: err}
	}
	return nil
}

// InsertMany writes all records inside one transaction: all rows land or
// none do. The statement's column list comes from the first record; all
// records must share that column set (guaranteed by the typed Record
// constructors). Returns the number of rows written.
func (c *Conn) InsertMany(ctx context.Context, table string, recs []Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, &QueryError{Op: "insert_many", Table: table, Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, c.dialect.rebind(buildInsert(table, recs[0].Columns)))
	if err != nil {
		_ = tx.Rollback()
		return 0, &QueryError{Op: "insert_many", Table: table, Err: err}
	}

	for i := range recs {
		if _, err := stmt.ExecContext(ctx, recs[i].Values...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, &QueryError{Op: "insert_many", Table: table, Err: err}
		}
	}

	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return 0, &QueryError{Op: "insert_many", Table: table, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &QueryError{Op: "insert_many", Table: table, Err: err}
	}

	logging.Debug().Str("table", table).Int("rows", len(recs)).Msg("Batch insert committed")
	return len(recs), nil
}

// buildUpdate renders a parameterized update for the given column list
// and where clause.
func buildUpdate(table string, columns []string, where string) string {
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = col + " = ?"
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), where)
}

// buildInsert renders a parameterized insert for the given column list.
func buildInsert(table string, columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
}
