// Package main implements pivotctl, the operator CLI for pivotscope.
// Every subcommand wires the same repositories and services as the server and
// runs one task to completion, for use from cron or an interactive shell.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aristath/pivotscope/internal/clients/stooq"
	"github.com/aristath/pivotscope/internal/config"
	"github.com/aristath/pivotscope/internal/database"
	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/patterns"
	"github.com/aristath/pivotscope/internal/modules/snapshots"
	"github.com/aristath/pivotscope/internal/modules/universe"
	"github.com/aristath/pivotscope/pkg/logger"
	"github.com/rs/zerolog"
)

// app bundles the shared wiring used by every subcommand
type app struct {
	cfg *config.Config
	log zerolog.Logger

	universeDB *database.DB
	historyDB  *database.DB
	analysisDB *database.DB

	securityRepo   *universe.SecurityRepository
	breakpointRepo *universe.BreakpointRepository
	priceRepo      *history.PriceRepository
	subpatternRepo *patterns.SubpatternRepository
	predictionRepo *patterns.PredictionRepository
	snapshotRepo   *snapshots.Repository

	quoteClient *stooq.Client
}

// openApp loads config, opens and migrates the databases, and builds the repos
func openApp(quiet bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.LogLevel
	if quiet {
		level = "warn"
	}
	log := logger.New(logger.Config{Level: level, Pretty: true})

	a := &app{cfg: cfg, log: log}

	open := func(name string, profile database.Profile) (*database.DB, error) {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, name+".db"),
			Profile: profile,
			Name:    name,
		})
		if err != nil {
			return nil, fmt.Errorf("opening %s database: %w", name, err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating %s database: %w", name, err)
		}
		return db, nil
	}

	if a.universeDB, err = open("universe", database.ProfileStandard); err != nil {
		return nil, err
	}
	if a.historyDB, err = open("history", database.ProfileStandard); err != nil {
		a.Close()
		return nil, err
	}
	if a.analysisDB, err = open("analysis", database.ProfileCache); err != nil {
		a.Close()
		return nil, err
	}

	a.securityRepo = universe.NewSecurityRepository(a.universeDB.Conn(), log)
	a.breakpointRepo = universe.NewBreakpointRepository(a.universeDB.Conn(), log)
	a.priceRepo = history.NewPriceRepository(a.historyDB.Conn(), log)
	a.subpatternRepo = patterns.NewSubpatternRepository(a.analysisDB.Conn(), log)
	a.predictionRepo = patterns.NewPredictionRepository(a.analysisDB.Conn(), log)
	a.snapshotRepo = snapshots.NewRepository(a.universeDB.Conn(), log)
	a.quoteClient = stooq.NewClient(cfg.QuoteBaseURL, log)

	return a, nil
}

// Close releases the database handles
func (a *app) Close() {
	for _, db := range []*database.DB{a.analysisDB, a.historyDB, a.universeDB} {
		if db != nil {
			db.Close()
		}
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "pivotctl",
		Short: "Operator CLI for the pivotscope analysis engine",
		Long: `pivotctl runs pivotscope tasks one-shot:

  run       - full analysis pass (extract subpattern library, forecast open intervals)
  report    - print the current top predictions
  prices    - sync the latest daily bars for all active securities
  label     - classify daily bars against breakpoint reference levels
  activate  - rescore the universe and rebalance the active set
  backup    - archive all databases to the configured R2 bucket`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newReportCmd(),
		newPricesCmd(),
		newLabelCmd(),
		newActivateCmd(),
		newBackupCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
