// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

// Package config loads and validates application configuration from three
// layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Default endpoints for the public Strava API. Overridable for tests and
// corporate proxies.
const (
	DefaultStravaBaseURL = "https://www.strava.com/api/v3"
	DefaultStravaAuthURL = "https://www.strava.com/oauth/token"
)

// Backend labels accepted by DatabaseConfig.Backend.
const (
	BackendDuckDB   = "duckdb"
	BackendPostgres = "postgres"
)

// Config is the root configuration for both the CLI and the dashboard.
type Config struct {
	Strava   StravaConfig   `koanf:"strava"`
	Sync     SyncConfig     `koanf:"sync"`
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// StravaConfig carries the OAuth2 application credentials and endpoint
// overrides for the remote API.
type StravaConfig struct {
	// ClientID and ClientSecret identify the registered Strava application.
	// Required for token refresh; the sync aborts without them once the
	// stored token expires.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
	AuthURL string `koanf:"auth_url" validate:"omitempty,url"`
}

// SyncConfig locates the per-run state files. One token file and one
// database target per run; there is no multi-athlete support.
type SyncConfig struct {
	// TokenFile is the JSON file holding the OAuth2 token bundle.
	TokenFile string `koanf:"token_file" validate:"required"`

	// ActivitiesLog is the append-only CSV sync log the watermark is
	// derived from.
	ActivitiesLog string `koanf:"activities_log" validate:"required"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	// Backend selects the storage engine: duckdb (embedded file) or
	// postgres (client/server).
	Backend string `koanf:"backend" validate:"required,oneof=duckdb postgres"`

	// Path is the database file for the duckdb backend.
	Path string `koanf:"path"`

	Postgres PostgresConfig `koanf:"postgres"`
}

// PostgresConfig carries client/server engine connection settings.
type PostgresConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"omitempty,min=1,max=65535"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"ssl_mode" validate:"omitempty,oneof=disable require verify-ca verify-full"`
}

// ServerConfig configures the dashboard HTTP server.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Strava: StravaConfig{
			BaseURL: DefaultStravaBaseURL,
			AuthURL: DefaultStravaAuthURL,
		},
		Sync: SyncConfig{
			TokenFile:     "json/strava_tokens.json",
			ActivitiesLog: "data/strava_activities.log",
		},
		Database: DatabaseConfig{
			Backend: BackendDuckDB,
			Path:    "bd/strava.duckdb",
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8085,
			Timeout:     30 * time.Second,
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks struct tags plus the cross-field constraints that tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Database.Backend {
	case BackendDuckDB:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the duckdb backend")
		}
	case BackendPostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" || c.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres host, database and user are required for the postgres backend")
		}
	}

	return nil
}
