package patterns

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/universe"
	"github.com/aristath/pivotscope/pkg/logger"
)

// AnalysisResult summarizes one end-to-end analysis run
type AnalysisResult struct {
	RunID       string
	Securities  int // Active securities considered
	Subpatterns int // Library size after extraction
	Predictions int
	Skipped     int // Securities without enough data to predict
	Failed      int // Securities that errored, in either phase
}

// AnalysisService orchestrates the two-phase analysis run: extract the
// subpattern library across all active securities, then forecast each
// security's open interval against that library.
type AnalysisService struct {
	securityRepo   *universe.SecurityRepository
	breakpointRepo *universe.BreakpointRepository
	priceRepo      *history.PriceRepository
	subpatternRepo *SubpatternRepository
	predictionRepo *PredictionRepository

	segmenter  *Segmenter
	matcher    *Matcher
	scorer     *Scorer
	forecaster *Forecaster

	lookback int // Days of history the extraction phase considers
	now      func() time.Time
	log      zerolog.Logger
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	securityRepo *universe.SecurityRepository,
	breakpointRepo *universe.BreakpointRepository,
	priceRepo *history.PriceRepository,
	subpatternRepo *SubpatternRepository,
	predictionRepo *PredictionRepository,
	lookbackDays int,
	log zerolog.Logger,
) *AnalysisService {
	return &AnalysisService{
		securityRepo:   securityRepo,
		breakpointRepo: breakpointRepo,
		priceRepo:      priceRepo,
		subpatternRepo: subpatternRepo,
		predictionRepo: predictionRepo,
		segmenter:      NewSegmenter(),
		matcher:        NewMatcher(),
		scorer:         NewScorer(),
		forecaster:     NewForecaster(),
		lookback:       lookbackDays,
		now:            time.Now,
		log:            logger.Service(log, "analysis"),
	}
}

// Run executes a full analysis pass. Per-security failures are logged and
// counted but never abort the run; it errors out only when there are no active
// securities or the universe holds no usable breakpoint and price data at all.
func (s *AnalysisService) Run(ctx context.Context) (*AnalysisResult, error) {
	securities, err := s.securityRepo.GetAllActive()
	if err != nil {
		return nil, fmt.Errorf("failed to load active securities: %w", err)
	}
	if len(securities) == 0 {
		return nil, fmt.Errorf("no active securities to analyze")
	}

	runID := uuid.New().String()
	result := &AnalysisResult{RunID: runID, Securities: len(securities)}

	s.log.Info().Str("run_id", runID).Int("securities", len(securities)).Msg("Starting analysis run")

	library := s.extractLibrary(ctx, securities, result)
	if len(library) == 0 {
		if hasData, err := s.priceRepo.HasAnyData(); err == nil && !hasData {
			return nil, fmt.Errorf("no subpatterns extracted: no price history loaded, sync prices first")
		}
		return nil, fmt.Errorf("no subpatterns extracted: universe has no usable breakpoint data")
	}

	if err := s.subpatternRepo.ReplaceAll(library, runID); err != nil {
		return nil, fmt.Errorf("failed to store subpattern library: %w", err)
	}
	result.Subpatterns = len(library)

	if len(library) < MinLibrarySize {
		s.log.Warn().
			Int("library_size", len(library)).
			Int("min", MinLibrarySize).
			Msg("Library too small for forecasting, skipping prediction phase")
		if err := s.predictionRepo.ReplaceAll(nil); err != nil {
			return nil, fmt.Errorf("failed to clear predictions: %w", err)
		}
		return result, nil
	}

	predictions := s.forecastAll(ctx, securities, library, runID, result)
	if err := s.predictionRepo.ReplaceAll(predictions); err != nil {
		return nil, fmt.Errorf("failed to store predictions: %w", err)
	}
	result.Predictions = len(predictions)

	s.log.Info().
		Str("run_id", runID).
		Int("subpatterns", result.Subpatterns).
		Int("predictions", result.Predictions).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Analysis run complete")

	return result, nil
}

// extractLibrary runs phase one: segment every active security's closed
// intervals into subpatterns. Extraction only considers bars inside the
// lookback window, so intervals that closed before it contribute nothing.
// The library is assembled fully in memory before being persisted, so a
// mid-run failure never leaves a partial library behind.
func (s *AnalysisService) extractLibrary(ctx context.Context, securities []universe.Security, result *AnalysisResult) []Subpattern {
	var library []Subpattern

	cutoff := s.now().UTC().AddDate(0, 0, -s.lookback).Format("2006-01-02")

	for _, sec := range securities {
		if ctx.Err() != nil {
			break
		}

		breakpoints, err := s.breakpointRepo.GetBySymbol(sec.Symbol)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", sec.Symbol).Msg("Failed to load breakpoints")
			result.Failed++
			continue
		}
		if len(breakpoints) < 2 {
			continue
		}

		fromDate := breakpoints[0].Date
		if fromDate < cutoff {
			fromDate = cutoff
		}

		bars, err := s.priceRepo.GetSince(sec.Symbol, fromDate)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", sec.Symbol).Msg("Failed to load price history")
			result.Failed++
			continue
		}

		library = append(library, s.segmenter.Extract(sec, breakpoints, bars)...)
	}

	return library
}

// forecastAll runs phase two: match each security's open interval against the
// library and build a prediction. Securities whose open interval is too short
// or matches too few library entries are skipped, not failed.
func (s *AnalysisService) forecastAll(ctx context.Context, securities []universe.Security, library []Subpattern, runID string, result *AnalysisResult) []Prediction {
	var predictions []Prediction

	for _, sec := range securities {
		if ctx.Err() != nil {
			break
		}

		p, err := s.forecastOne(sec, library, runID)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", sec.Symbol).Msg("Failed to forecast")
			result.Failed++
			continue
		}
		if p == nil {
			result.Skipped++
			continue
		}

		predictions = append(predictions, *p)
	}

	return predictions
}

// forecastOne builds the prediction for one security, or returns nil when the
// security has no open interval worth forecasting
func (s *AnalysisService) forecastOne(sec universe.Security, library []Subpattern, runID string) (*Prediction, error) {
	bp, err := s.breakpointRepo.GetLatest(sec.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest breakpoint: %w", err)
	}
	if bp == nil {
		return nil, nil
	}

	bars, err := s.priceRepo.GetSince(sec.Symbol, bp.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to load open-interval bars: %w", err)
	}
	if len(bars) < MinWindowBars {
		return nil, nil
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	matches := s.matcher.Match(Normalize(closes), library)
	if matches == nil {
		return nil, nil
	}

	latest := bars[len(bars)-1]
	stats := s.scorer.ComputeStats(matches)
	unrealized := (latest.Close/bp.Price - 1) * 100
	score := s.scorer.Score(matches, stats, latest.Label, unrealized)

	p := s.forecaster.Build(sec, *bp, latest, matches, stats, score, runID)
	return &p, nil
}
