// Package logger sets up the zerolog configuration shared by the pivotscope
// server and the pivotctl CLI.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level  string // zerolog level name; unknown values fall back to info
	Pretty bool   // Human-readable console output instead of JSON
}

// New creates the root logger every component derives from. A bad LOG_LEVEL
// falls back to info rather than silencing the process.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	// Job and request durations are reported in milliseconds
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// Service returns a child logger tagged with the owning pipeline stage, so
// sync, labeling, analysis, activation, snapshot and backup lines can be
// filtered apart in aggregated output.
func Service(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str("service", name).Logger()
}

// SetGlobalLogger routes zerolog's package-level logger through the root logger
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
