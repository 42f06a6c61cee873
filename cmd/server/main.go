// Package main is the entry point for the pivotscope server: a breakpoint-based
// pattern analysis system that maintains a universe of securities, labels their
// daily bars, extracts a cross-security subpattern library, and forecasts each
// security's open interval from similar historical trajectories.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/pivotscope/internal/clients/stooq"
	"github.com/aristath/pivotscope/internal/config"
	"github.com/aristath/pivotscope/internal/database"
	"github.com/aristath/pivotscope/internal/modules/activation"
	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/labeling"
	"github.com/aristath/pivotscope/internal/modules/patterns"
	"github.com/aristath/pivotscope/internal/modules/snapshots"
	"github.com/aristath/pivotscope/internal/modules/universe"
	"github.com/aristath/pivotscope/internal/reliability"
	"github.com/aristath/pivotscope/internal/scheduler"
	"github.com/aristath/pivotscope/internal/server"
	"github.com/aristath/pivotscope/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting pivotscope")

	// Databases
	universeDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "universe.db"),
		Profile: database.ProfileStandard,
		Name:    "universe",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open universe database")
	}
	defer universeDB.Close()

	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	analysisDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "analysis.db"),
		Profile: database.ProfileCache,
		Name:    "analysis",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open analysis database")
	}
	defer analysisDB.Close()

	for _, db := range []*database.DB{universeDB, historyDB, analysisDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Migration failed")
		}
	}

	// Repositories
	securityRepo := universe.NewSecurityRepository(universeDB.Conn(), log)
	breakpointRepo := universe.NewBreakpointRepository(universeDB.Conn(), log)
	priceRepo := history.NewPriceRepository(historyDB.Conn(), log)
	subpatternRepo := patterns.NewSubpatternRepository(analysisDB.Conn(), log)
	predictionRepo := patterns.NewPredictionRepository(analysisDB.Conn(), log)
	snapshotRepo := snapshots.NewRepository(universeDB.Conn(), log)

	// Services
	quoteClient := stooq.NewClient(cfg.QuoteBaseURL, log)
	syncService := history.NewSyncService(quoteClient, securityRepo, priceRepo, cfg.LookbackDays, log)
	labelingService := labeling.NewService(breakpointRepo, securityRepo, priceRepo, log)
	analysisService := patterns.NewAnalysisService(
		securityRepo, breakpointRepo, priceRepo, subpatternRepo, predictionRepo, cfg.LookbackDays, log,
	)
	activationService := activation.NewService(securityRepo, breakpointRepo, priceRepo, log)
	snapshotService := snapshots.NewService(predictionRepo, snapshotRepo, log)

	// Scheduler and jobs
	sched := scheduler.New(log)

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.PriceSyncSchedule, scheduler.NewPriceSyncJob(syncService, log)},
		{cfg.LabelingSchedule, scheduler.NewLabelingJob(labelingService, log)},
		{cfg.AnalysisSchedule, scheduler.NewAnalysisJob(analysisService)},
		{cfg.ActivationSchedule, scheduler.NewActivationJob(activationService)},
		{cfg.SnapshotSchedule, scheduler.NewSnapshotJob(snapshotService)},
	}

	if cfg.Backup.Enabled() {
		r2Client, err := reliability.NewR2Client(context.Background(), reliability.R2Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create R2 client")
		}

		backupService := reliability.NewBackupService(map[string]*database.DB{
			"universe": universeDB,
			"history":  historyDB,
			"analysis": analysisDB,
		}, log)
		r2BackupService := reliability.NewR2BackupService(r2Client, backupService, cfg.DataDir, log)

		jobs = append(jobs, struct {
			schedule string
			job      scheduler.Job
		}{cfg.BackupSchedule, scheduler.NewBackupJob(r2BackupService, cfg.Backup.Keep)})
	} else {
		log.Info().Msg("Remote backups disabled (no credentials configured)")
	}

	registered := make([]scheduler.Job, 0, len(jobs))
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
		registered = append(registered, j.job)
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:            log,
		UniverseDB:     universeDB,
		HistoryDB:      historyDB,
		AnalysisDB:     analysisDB,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		DataDir:        cfg.DataDir,
		SecurityRepo:   securityRepo,
		BreakpointRepo: breakpointRepo,
		PriceRepo:      priceRepo,
		SubpatternRepo: subpatternRepo,
		PredictionRepo: predictionRepo,
		SnapshotRepo:   snapshotRepo,
	})
	srv.SetJobs(sched, registered...)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}
