package labeling

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/universe"
	"github.com/aristath/pivotscope/pkg/logger"
)

// BreakpointSource provides breakpoints for a security ascending by sequence number
type BreakpointSource interface {
	GetBySymbol(symbol string) ([]universe.Breakpoint, error)
}

// SecurityLister provides the securities to label
type SecurityLister interface {
	GetAllActive() ([]universe.Security, error)
}

// Result summarizes one labeling pass
type Result struct {
	Labeled int
	Skipped int // Bars in the first interval or before any breakpoint
	Failed  int // Securities that errored
}

// Service assigns pattern labels to stored price bars
type Service struct {
	breakpoints BreakpointSource
	securities  SecurityLister
	prices      *history.PriceRepository
	log         zerolog.Logger
}

// NewService creates a new labeling service
func NewService(breakpoints BreakpointSource, securities SecurityLister, prices *history.PriceRepository, log zerolog.Logger) *Service {
	return &Service{
		breakpoints: breakpoints,
		securities:  securities,
		prices:      prices,
		log:         logger.Service(log, "labeling"),
	}
}

// LabelDate labels the bar at the given date for every active security.
// Securities without a bar on that date are skipped silently.
func (s *Service) LabelDate(date string) (Result, error) {
	var result Result

	if err := validDate(date); err != nil {
		return result, err
	}

	securities, err := s.securities.GetAllActive()
	if err != nil {
		return result, err
	}

	for _, sec := range securities {
		labeled, err := s.labelSecurityDate(sec.Symbol, date)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", sec.Symbol).Msg("Labeling failed, skipping security")
			result.Failed++
			continue
		}
		if labeled {
			result.Labeled++
		} else {
			result.Skipped++
		}
	}

	s.log.Info().
		Str("date", date).
		Int("labeled", result.Labeled).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Labeling pass complete")

	return result, nil
}

// RelabelAll recomputes the label of every stored bar for one security.
// Returns the number of bars labeled.
func (s *Service) RelabelAll(symbol string) (int, error) {
	breakpoints, err := s.breakpoints.GetBySymbol(symbol)
	if err != nil {
		return 0, err
	}

	bars, err := s.prices.GetSince(symbol, "")
	if err != nil {
		return 0, err
	}

	labeled := 0
	for _, bar := range bars {
		label, ok := s.classifyBar(breakpoints, bar)
		if !ok {
			continue
		}
		if err := s.prices.SetLabel(symbol, bar.Date, label); err != nil {
			return labeled, err
		}
		labeled++
	}

	return labeled, nil
}

// labelSecurityDate labels one security's bar on one date.
// Returns false when there is no bar or no applicable interval.
func (s *Service) labelSecurityDate(symbol, date string) (bool, error) {
	bars, err := s.prices.GetRange(symbol, date, date)
	if err != nil {
		return false, err
	}
	if len(bars) == 0 {
		return false, nil
	}

	breakpoints, err := s.breakpoints.GetBySymbol(symbol)
	if err != nil {
		return false, err
	}

	label, ok := s.classifyBar(breakpoints, bars[0])
	if !ok {
		return false, nil
	}

	if err := s.prices.SetLabel(symbol, date, label); err != nil {
		return false, err
	}

	return true, nil
}

// classifyBar finds the interval a bar falls in and classifies its close.
// The reference levels come from all breakpoints strictly before the interval's
// opening breakpoint, so bars in the first interval are not classifiable.
func (s *Service) classifyBar(breakpoints []universe.Breakpoint, bar history.PriceBar) (history.Label, bool) {
	// Index of the interval-opening breakpoint: the last one dated <= bar date
	opening := -1
	for i, bp := range breakpoints {
		if bp.Date <= bar.Date {
			opening = i
		} else {
			break
		}
	}
	if opening < 1 {
		// Before any breakpoint, or inside the first interval
		return history.LabelNone, false
	}

	prior := make([]float64, 0, opening)
	for _, bp := range breakpoints[:opening] {
		prior = append(prior, bp.Price)
	}

	levels := ComputeRefLevels(prior)
	if levels == nil {
		return history.LabelNone, false
	}

	return Classify(bar.Close, *levels), true
}

// Dates sanity check used at call sites that accept user-supplied dates
func validDate(date string) error {
	if len(date) != 10 || date[4] != '-' || date[7] != '-' {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return nil
}
