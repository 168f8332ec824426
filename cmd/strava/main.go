// Strava Sync - Activity and Kudos Synchronization for Strava
// Copyright 2026 Jose F. de la Fuente (jfdelafuente)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jfdelafuente/strava-sync

// Command strava is the entry point for the sync pipeline and the
// dashboard server.
//
// Subcommands:
//
//	sync       run one synchronization (incremental by default)
//	report     export the kudos CSV report
//	init-db    create the storage schema (--reset drops it first)
//	authorize  exchange an authorization code for the initial token
//	dashboard  serve the HTTP dashboard API
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jfdelafuente/strava-sync/internal/api"
	"github.com/jfdelafuente/strava-sync/internal/auth"
	"github.com/jfdelafuente/strava-sync/internal/config"
	"github.com/jfdelafuente/strava-sync/internal/database"
	"github.com/jfdelafuente/strava-sync/internal/logging"
	"github.com/jfdelafuente/strava-sync/internal/report"
	"github.com/jfdelafuente/strava-sync/internal/strava"
	"github.com/jfdelafuente/strava-sync/internal/sync"
	"github.com/jfdelafuente/strava-sync/internal/synclog"
)

const usage = `Usage: strava <command> [flags]

Commands:
  sync       Synchronize activities and kudos from Strava
  report     Export the kudos report as CSV
  init-db    Initialize the database schema
  authorize  Exchange an authorization code for tokens
  dashboard  Serve the dashboard HTTP API

Run 'strava <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "strava: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	var runErr error
	switch cmd := os.Args[1]; cmd {
	case "sync":
		runErr = runSync(cfg, os.Args[2:])
	case "report":
		runErr = runReport(cfg, os.Args[2:])
	case "init-db":
		runErr = runInitDB(cfg, os.Args[2:])
	case "authorize":
		runErr = runAuthorize(cfg, os.Args[2:])
	case "dashboard":
		runErr = runDashboard(cfg, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "strava: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if runErr != nil {
		logging.Err(runErr).Msg("Command failed")
		os.Exit(1)
	}
}

// openStore opens the configured backend and verifies it is reachable
// before any command starts work against it.
func openStore(cfg *config.Config) (*database.Store, error) {
	store, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// buildOrchestrator wires the sync pipeline from configuration. The
// returned store must be closed by the caller.
func buildOrchestrator(cfg *config.Config) (*sync.Orchestrator, *database.Store, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := store.InitSchema(context.Background()); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	tokens := auth.NewManager(&cfg.Strava, auth.NewStore(cfg.Sync.TokenFile))
	client := strava.NewClient(&cfg.Strava)
	log := synclog.New(cfg.Sync.ActivitiesLog)

	return sync.New(tokens, client, sync.StoreAdapter{Store: store}, log), store, nil
}

// addStorageFlags registers per-command overrides for the storage
// target on top of the loaded configuration.
func addStorageFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Database.Backend, "db", cfg.Database.Backend, "storage backend: duckdb or postgres")
	fs.StringVar(&cfg.Database.Path, "db-path", cfg.Database.Path, "database file path (duckdb backend)")
}

func runSync(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	since := fs.String("since", "", "sync window start: YYYY-MM-DD or Unix epoch")
	force := fs.Bool("force", false, "ignore the watermark and sync everything")
	fs.StringVar(&cfg.Sync.TokenFile, "token-file", cfg.Sync.TokenFile, "path to the OAuth token file")
	fs.StringVar(&cfg.Sync.ActivitiesLog, "activities-log", cfg.Sync.ActivitiesLog, "path to the sync watermark log")
	addStorageFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := sync.Options{}
	switch {
	case *since != "":
		epoch, err := parseSince(*since)
		if err != nil {
			return err
		}
		opts.Since = &epoch
	case *force:
		zero := int64(0)
		opts.Since = &zero
	}

	orch, store, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := orch.Run(context.Background(), opts)
	if err != nil {
		if strava.IsRateLimited(err) {
			return fmt.Errorf("strava rate limit reached, retry in ~15 minutes: %w", err)
		}
		return err
	}

	fmt.Printf("Activities fetched:   %d\n", result.ActivitiesFetched)
	fmt.Printf("Activities persisted: %d\n", result.ActivitiesPersisted)
	fmt.Printf("Kudos persisted:      %d\n", result.KudosPersisted)
	fmt.Printf("Backend:              %s\n", result.Backend)
	return nil
}

// parseSince accepts a calendar date (midnight local time, matching the
// watermark's local-zone interpretation) or a raw Unix epoch.
func parseSince(raw string) (int64, error) {
	if strings.Contains(raw, "-") {
		t, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return 0, fmt.Errorf("invalid --since date %q, use YYYY-MM-DD or a Unix epoch", raw)
		}
		return t.Unix(), nil
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid --since value %q, use YYYY-MM-DD or a Unix epoch", raw)
	}
	return epoch, nil
}

func runReport(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	output := fs.String("output", "data/strava_kudos.csv", "output CSV path")
	addStorageFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	reporter := report.New(store)

	stats, err := reporter.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Activities: %d  Distance: %.1f km  Time: %.1f h  Kudos: %d\n",
		stats.TotalActivities, stats.TotalDistanceKm, stats.TotalTimeHours, stats.TotalKudos)
	for _, ts := range stats.ByType {
		fmt.Printf("  %-12s %4d activities  %8.1f km  %5d kudos\n",
			ts.Type, ts.Activities, ts.DistanceKm, ts.Kudos)
	}

	n, err := reporter.ExportKudosCSV(ctx, *output)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Println("No kudos data to export")
		return nil
	}
	fmt.Printf("Exported %d rows to %s\n", n, *output)
	return nil
}

func runInitDB(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("init-db", flag.ExitOnError)
	reset := fs.Bool("reset", false, "drop and recreate the schema, destroying all data")
	addStorageFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if *reset {
		if err := store.ResetSchema(ctx); err != nil {
			return err
		}
		fmt.Printf("Schema reset on %s\n", store.Label())
		return nil
	}
	if err := store.InitSchema(ctx); err != nil {
		return err
	}
	fmt.Printf("Schema initialized on %s\n", store.Label())
	return nil
}

func runAuthorize(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("authorize", flag.ExitOnError)
	code := fs.String("code", "", "authorization code from the OAuth redirect")
	fs.StringVar(&cfg.Sync.TokenFile, "token-file", cfg.Sync.TokenFile, "path to the OAuth token file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *code == "" {
		return fmt.Errorf("authorize: --code is required")
	}

	manager := auth.NewManager(&cfg.Strava, auth.NewStore(cfg.Sync.TokenFile))
	tok, err := manager.Authenticate(context.Background(), *code)
	if err != nil {
		return err
	}

	fmt.Printf("Token stored in %s (expires at %s)\n",
		cfg.Sync.TokenFile, time.Unix(tok.ExpiresAt, 0).Format(time.RFC3339))
	return nil
}

func runDashboard(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	orch, store, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	server := api.NewServer(&cfg.Server, report.New(store), orch, store.Label())

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}
