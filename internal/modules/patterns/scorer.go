package patterns

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aristath/pivotscope/internal/modules/history"
)

// ScoreResult holds the composite investment score and its derived fields
type ScoreResult struct {
	Score          int // 0-100, clamped
	Confidence     int // min(match count * 5, 100)
	Recommendation Recommendation
}

// Scorer turns matched subpatterns plus current-interval state into a bounded
// composite investment score and a recommendation tier
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// ComputeStats aggregates the matched subpatterns' outcomes
func (s *Scorer) ComputeStats(matches []Match) MatchStats {
	endReturns := make([]float64, len(matches))
	maxReturns := make([]float64, len(matches))
	durations := make([]float64, len(matches))
	for i, m := range matches {
		endReturns[i] = m.Subpattern.EndReturn
		maxReturns[i] = m.Subpattern.MaxReturn
		durations[i] = float64(m.Subpattern.Duration)
	}

	minReturn, maxReturn := endReturns[0], endReturns[0]
	for _, r := range endReturns[1:] {
		if r < minReturn {
			minReturn = r
		}
		if r > maxReturn {
			maxReturn = r
		}
	}

	return MatchStats{
		MeanExpectedReturn: round2(stat.Mean(endReturns, nil)),
		MinExpectedReturn:  round2(minReturn),
		MaxExpectedReturn:  round2(maxReturn),
		MeanMaxReturn:      round2(stat.Mean(maxReturns, nil)),
		MeanDuration:       int(math.Round(stat.Mean(durations, nil))),
	}
}

// Score combines four additive components and clamps the total to [0,100]:
//   - expected-return tier (0-40) on the mean matched end return
//   - match-count confidence (0-30)
//   - current-label bonus (0-20)
//   - unrealized-return bonus (0-10): being flat or under water relative to the
//     breakpoint price scores higher (contrarian entry)
func (s *Scorer) Score(matches []Match, stats MatchStats, currentLabel history.Label, unrealizedReturn float64) ScoreResult {
	score := expectedReturnComponent(stats.MeanExpectedReturn) +
		matchCountComponent(len(matches)) +
		labelComponent(currentLabel) +
		unrealizedComponent(unrealizedReturn)

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	confidence := len(matches) * 5
	if confidence > 100 {
		confidence = 100
	}

	return ScoreResult{
		Score:          score,
		Confidence:     confidence,
		Recommendation: recommendationFor(score),
	}
}

func expectedReturnComponent(meanExpectedReturn float64) int {
	switch {
	case meanExpectedReturn >= 30:
		return 40
	case meanExpectedReturn >= 20:
		return 30
	case meanExpectedReturn >= 10:
		return 20
	case meanExpectedReturn >= 5:
		return 10
	default:
		return 0
	}
}

func matchCountComponent(count int) int {
	switch {
	case count >= 15:
		return 30
	case count >= 10:
		return 20
	case count >= 5:
		return 10
	default:
		return 0
	}
}

func labelComponent(label history.Label) int {
	switch label {
	case history.LabelBreakout:
		return 20
	case history.LabelBreakoutPullback:
		return 15
	case history.LabelRange:
		return 10
	default:
		return 0
	}
}

func unrealizedComponent(unrealizedReturn float64) int {
	switch {
	case unrealizedReturn < -5:
		return 10
	case unrealizedReturn < 0:
		return 7
	case unrealizedReturn < 5:
		return 5
	default:
		return 0
	}
}

// recommendationFor maps a final score to its tier
func recommendationFor(score int) Recommendation {
	switch {
	case score >= 70:
		return RecommendStrongBuy
	case score >= 50:
		return RecommendBuy
	case score >= 30:
		return RecommendWatch
	default:
		return RecommendAvoid
	}
}

// round2 rounds to two decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
