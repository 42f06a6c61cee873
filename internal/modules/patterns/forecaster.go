package patterns

import (
	"time"

	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/universe"
)

// buyDiscounts are the five ladder levels below the latest close
var buyDiscounts = [5]float64{0.98, 0.96, 0.94, 0.92, 0.90}

// Forecaster assembles the final prediction record from matcher and scorer output
type Forecaster struct{}

// NewForecaster creates a new forecaster
func NewForecaster() *Forecaster {
	return &Forecaster{}
}

// Build assembles the prediction for one security's open interval.
// The matches slice must already be sorted descending by similarity.
func (f *Forecaster) Build(
	sec universe.Security,
	bp universe.Breakpoint,
	latest history.PriceBar,
	matches []Match,
	stats MatchStats,
	score ScoreResult,
	runID string,
) Prediction {
	var buys [5]float64
	var buySum float64
	for i, discount := range buyDiscounts {
		buys[i] = round2(latest.Close * discount)
		buySum += buys[i]
	}

	targetPrice := round2(bp.Price * (1 + stats.MeanExpectedReturn/100))

	similars := make([]SimilarPattern, 0, TopSimilars)
	for _, m := range matches {
		if len(similars) == TopSimilars {
			break
		}
		similars = append(similars, SimilarPattern{
			Symbol:     m.Subpattern.Symbol,
			Name:       m.Subpattern.Name,
			Similarity: round2(m.Similarity * 100),
			EndReturn:  m.Subpattern.EndReturn,
			MaxReturn:  m.Subpattern.MaxReturn,
			Duration:   m.Subpattern.Duration,
		})
	}

	return Prediction{
		Symbol:          sec.Symbol,
		Name:            sec.Name,
		BreakpointSeq:   bp.Seq,
		BreakpointDate:  bp.Date,
		BreakpointPrice: bp.Price,

		ElapsedDays:      elapsedDays(bp.Date, latest.Date),
		UnrealizedReturn: round2((latest.Close/bp.Price - 1) * 100),
		LatestClose:      latest.Close,
		CurrentLabel:     latest.Label,

		MatchCount:         len(matches),
		MeanExpectedReturn: stats.MeanExpectedReturn,
		MinExpectedReturn:  stats.MinExpectedReturn,
		MaxExpectedReturn:  stats.MaxExpectedReturn,
		MeanMaxReturn:      stats.MeanMaxReturn,
		MeanDuration:       stats.MeanDuration,

		Score:          score.Score,
		Confidence:     score.Confidence,
		Recommendation: score.Recommendation,

		BuyPrices:    buys,
		MeanBuyPrice: round2(buySum / 5),

		TargetPrice: targetPrice,
		// Target return is expressed against the latest close, not the breakpoint price
		TargetReturn: round2((targetPrice/latest.Close - 1) * 100),

		Similars: similars,
		RunID:    runID,
	}
}

// elapsedDays counts calendar days between two YYYY-MM-DD dates.
// Unparseable dates count as zero elapsed days.
func elapsedDays(from, to string) int {
	fromT, err1 := time.Parse("2006-01-02", from)
	toT, err2 := time.Parse("2006-01-02", to)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(toT.Sub(fromT).Hours() / 24)
}
