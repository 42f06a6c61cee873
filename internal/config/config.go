// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for all databases (always absolute)
	LogLevel     string
	Port         int
	DevMode      bool
	QuoteBaseURL string // Base URL for the daily quote API
	LookbackDays int    // History window for backfill and subpattern extraction

	// Job schedules (cron specs, robfig/cron format with seconds)
	PriceSyncSchedule  string
	LabelingSchedule   string
	AnalysisSchedule   string
	ActivationSchedule string
	SnapshotSchedule   string
	BackupSchedule     string

	Backup *BackupConfig
}

// BackupConfig holds remote backup configuration (S3-compatible, e.g. Cloudflare R2).
// Backups are disabled when any credential field is empty.
type BackupConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Keep      int // Number of remote backups retained after pruning
}

// Enabled reports whether remote backups are configured
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Endpoint != "" && b.Bucket != "" && b.AccessKey != "" && b.SecretKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic:
	// 1. Check PIVOTSCOPE_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path and ensure it exists
	dataDir := getEnv("PIVOTSCOPE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnvAsInt("PORT", 8090),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		QuoteBaseURL: getEnv("QUOTE_BASE_URL", "https://stooq.com/q/d/l/"),
		LookbackDays: getEnvAsInt("LOOKBACK_DAYS", 730), // 2 years

		PriceSyncSchedule:  getEnv("PRICE_SYNC_SCHEDULE", "0 30 22 * * MON-FRI"),
		LabelingSchedule:   getEnv("LABELING_SCHEDULE", "0 45 22 * * MON-FRI"),
		AnalysisSchedule:   getEnv("ANALYSIS_SCHEDULE", "0 0 23 * * MON-FRI"),
		ActivationSchedule: getEnv("ACTIVATION_SCHEDULE", "0 30 23 * * FRI"),
		SnapshotSchedule:   getEnv("SNAPSHOT_SCHEDULE", "0 0 9 1 * *"),
		BackupSchedule:     getEnv("BACKUP_SCHEDULE", "0 0 2 * * *"),

		Backup: &BackupConfig{
			Endpoint:  getEnv("R2_ENDPOINT", ""),
			Bucket:    getEnv("R2_BUCKET", ""),
			AccessKey: getEnv("R2_ACCESS_KEY", ""),
			SecretKey: getEnv("R2_SECRET_KEY", ""),
			Keep:      getEnvAsInt("R2_BACKUPS_KEEP", 14),
		},
	}

	if cfg.LookbackDays <= 0 {
		return nil, fmt.Errorf("LOOKBACK_DAYS must be positive, got %d", cfg.LookbackDays)
	}

	return cfg, nil
}

// getEnv retrieves an environment variable value with a fallback default
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer with a fallback default
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsBool retrieves an environment variable as a boolean with a fallback default
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
