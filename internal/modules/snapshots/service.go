package snapshots

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pivotscope/internal/modules/patterns"
	"github.com/aristath/pivotscope/pkg/logger"
)

// MaxDeviationPct is the buy-zone width: a security is snapshotted when its
// latest close is no more than this far above the forecast mean buy price.
// Closes at or below the buy price always qualify.
const MaxDeviationPct = 3.0

// Service captures the monthly buy-zone snapshot from the current predictions
type Service struct {
	predictionRepo *patterns.PredictionRepository
	repo           *Repository
	now            func() time.Time
	log            zerolog.Logger
}

// NewService creates a new snapshot service
func NewService(predictionRepo *patterns.PredictionRepository, repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		predictionRepo: predictionRepo,
		repo:           repo,
		now:            time.Now,
		log:            logger.Service(log, "snapshots"),
	}
}

// Run upserts this month's snapshot for every prediction currently in the buy
// zone. Returns the number of snapshots written.
func (s *Service) Run(ctx context.Context) (int, error) {
	predictions, err := s.predictionRepo.All()
	if err != nil {
		return 0, fmt.Errorf("failed to load predictions: %w", err)
	}

	month := s.now().UTC().Format("2006-01")
	saved := 0

	for _, p := range predictions {
		if ctx.Err() != nil {
			return saved, ctx.Err()
		}
		if p.MeanBuyPrice <= 0 {
			continue
		}

		deviation := (p.LatestClose/p.MeanBuyPrice - 1) * 100
		if deviation > MaxDeviationPct {
			continue
		}

		snap := Snapshot{
			Symbol:         p.Symbol,
			Month:          month,
			Name:           p.Name,
			MeanBuyPrice:   p.MeanBuyPrice,
			LatestClose:    p.LatestClose,
			DeviationPct:   round2(deviation),
			Label:          p.CurrentLabel,
			Score:          p.Score,
			BreakpointDate: p.BreakpointDate,
		}
		if err := s.repo.Upsert(snap); err != nil {
			s.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("Failed to save snapshot")
			continue
		}
		saved++
	}

	s.log.Info().Str("month", month).Int("saved", saved).Msg("Monthly snapshot complete")
	return saved, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
