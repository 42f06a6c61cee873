package activation

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/universe"
	"github.com/aristath/pivotscope/pkg/logger"
)

// Result summarizes one activation pass
type Result struct {
	Scored      int
	Activated   int
	Deactivated int
	Failed      int
}

// Service recomputes management scores for every known security and rebalances
// the active universe: top MaxActive by score, subject to the score and
// liquidity floors.
type Service struct {
	securityRepo   *universe.SecurityRepository
	breakpointRepo *universe.BreakpointRepository
	priceRepo      *history.PriceRepository
	scorer         *Scorer
	log            zerolog.Logger
}

// NewService creates a new activation service
func NewService(
	securityRepo *universe.SecurityRepository,
	breakpointRepo *universe.BreakpointRepository,
	priceRepo *history.PriceRepository,
	log zerolog.Logger,
) *Service {
	return &Service{
		securityRepo:   securityRepo,
		breakpointRepo: breakpointRepo,
		priceRepo:      priceRepo,
		scorer:         NewScorer(),
		log:            logger.Service(log, "activation"),
	}
}

// Run scores every security, persists the scores, then applies the
// activation policy. Per-security scoring failures are logged and the
// security keeps its previous score.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	securities, err := s.securityRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load securities: %w", err)
	}
	if len(securities) == 0 {
		return nil, fmt.Errorf("no securities in universe")
	}

	result := &Result{}

	type scored struct {
		symbol    string
		score     float64
		avgVolume int64
		active    bool
	}
	ranked := make([]scored, 0, len(securities))

	for _, sec := range securities {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		score, avgVolume, err := s.scoreSecurity(sec.Symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", sec.Symbol).Msg("Failed to score security")
			result.Failed++
			ranked = append(ranked, scored{sec.Symbol, sec.ActivationScore, sec.AvgVolume, sec.Active})
			continue
		}

		if err := s.securityRepo.SetActivationScore(sec.Symbol, score, avgVolume); err != nil {
			return nil, fmt.Errorf("failed to store score for %s: %w", sec.Symbol, err)
		}
		result.Scored++
		ranked = append(ranked, scored{sec.Symbol, score, avgVolume, sec.Active})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	// Top MaxActive by score, then the score and liquidity floors
	selected := make(map[string]bool, MaxActive)
	for i, r := range ranked {
		if i >= MaxActive {
			break
		}
		if r.score >= MinScore && r.avgVolume >= MinAvgVolume {
			selected[r.symbol] = true
		}
	}

	for _, r := range ranked {
		if selected[r.symbol] {
			if err := s.securityRepo.Activate(r.symbol); err != nil {
				return nil, fmt.Errorf("failed to activate %s: %w", r.symbol, err)
			}
			result.Activated++
		} else if r.active {
			reason := fmt.Sprintf("management score %.1f", r.score)
			if err := s.securityRepo.Deactivate(r.symbol, reason); err != nil {
				return nil, fmt.Errorf("failed to deactivate %s: %w", r.symbol, err)
			}
			result.Deactivated++
		}
	}

	s.log.Info().
		Int("scored", result.Scored).
		Int("activated", result.Activated).
		Int("deactivated", result.Deactivated).
		Int("failed", result.Failed).
		Msg("Activation pass complete")

	return result, nil
}

// scoreSecurity assembles the score inputs from stored history and breakpoints
func (s *Service) scoreSecurity(symbol string) (float64, int64, error) {
	earliest, err := s.priceRepo.GetEarliest(symbol)
	if err != nil {
		return 0, 0, err
	}
	latest, err := s.priceRepo.GetLatest(symbol)
	if err != nil {
		return 0, 0, err
	}
	if earliest == nil || latest == nil {
		return 0, 0, fmt.Errorf("no price history for %s", symbol)
	}

	volumes, err := s.priceRepo.GetRecentVolumes(symbol, volumeWindow)
	if err != nil {
		return 0, 0, err
	}

	in := ScoreInputs{
		AvgVolume: AvgVolume(volumes),
		Label:     latest.Label,
	}
	if earliest.Close > 0 {
		in.TotalReturn = (latest.Close/earliest.Close - 1) * 100
	}

	bp, err := s.breakpointRepo.GetLatest(symbol)
	if err != nil {
		return 0, 0, err
	}
	if bp != nil && bp.Price > 0 {
		in.HasBreakpoint = true
		in.DeviationPct = (latest.Close/bp.Price - 1) * 100
	}

	return s.scorer.Score(in), int64(in.AvgVolume), nil
}
