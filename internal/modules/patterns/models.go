// Package patterns implements the subpattern extraction and similarity-based
// forecasting engine: it decomposes each security's breakpoint-to-breakpoint history
// into length-normalized subpatterns, builds a cross-security library of them, and
// searches that library for trajectories similar to each security's current open
// interval to produce a forecast and a composite investment score.
package patterns

import (
	"github.com/aristath/pivotscope/internal/modules/history"
)

// Subpattern summarizes one closed interval between two consecutive breakpoints.
// It is pure derived state, recomputable at any time from breakpoints and price
// bars, and is rebuilt wholesale on every analysis run.
type Subpattern struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	StartSeq   int     `json:"start_seq"`
	EndSeq     int     `json:"end_seq"`
	StartDate  string  `json:"start_date"`
	StartPrice float64 `json:"start_price"`
	EndDate    string  `json:"end_date"`
	EndPrice   float64 `json:"end_price"`

	Duration      int           `json:"duration"`   // Bar count in the window
	EndReturn     float64       `json:"end_return"` // (end/start - 1) * 100, from breakpoint prices
	MaxReturn     float64       `json:"max_return"` // Extremes of the running close-return series
	MinReturn     float64       `json:"min_return"`
	Volatility    float64       `json:"volatility"` // Sample standard deviation of the running return series
	DominantLabel history.Label `json:"dominant_label"`

	// Embedding is the min-max normalized closing-price curve, one value per bar
	// in [0,1], used purely for shape comparison.
	Embedding []float64 `json:"embedding"`
}

// Match pairs a library subpattern with its similarity to the current curve
type Match struct {
	Similarity float64
	Subpattern Subpattern
}

// MatchStats aggregates the matched subpatterns backing one prediction
type MatchStats struct {
	MeanExpectedReturn float64
	MinExpectedReturn  float64
	MaxExpectedReturn  float64
	MeanMaxReturn      float64
	MeanDuration       int
}

// Recommendation is the discrete tier derived from the investment score
type Recommendation string

const (
	RecommendStrongBuy Recommendation = "strong_buy"
	RecommendBuy       Recommendation = "buy"
	RecommendWatch     Recommendation = "watch"
	RecommendAvoid     Recommendation = "avoid"
)

// SimilarPattern is one explainability entry on a prediction: a matched historical
// subpattern with its similarity, carried for transparency only
type SimilarPattern struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"` // Percentage, 0-100
	EndReturn  float64 `json:"end_return"`
	MaxReturn  float64 `json:"max_return"`
	Duration   int     `json:"duration"`
}

// Prediction is the per-security forecast for the current open interval
// (latest breakpoint to the most recent bar)
type Prediction struct {
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	BreakpointSeq   int     `json:"breakpoint_seq"`
	BreakpointDate  string  `json:"breakpoint_date"`
	BreakpointPrice float64 `json:"breakpoint_price"`

	ElapsedDays      int           `json:"elapsed_days"`
	UnrealizedReturn float64       `json:"unrealized_return"`
	LatestClose      float64       `json:"latest_close"`
	CurrentLabel     history.Label `json:"current_label"`

	MatchCount         int     `json:"match_count"`
	MeanExpectedReturn float64 `json:"mean_expected_return"`
	MinExpectedReturn  float64 `json:"min_expected_return"`
	MaxExpectedReturn  float64 `json:"max_expected_return"`
	MeanMaxReturn      float64 `json:"mean_max_return"`
	MeanDuration       int     `json:"mean_duration"`

	Score          int            `json:"score"`      // Composite investment score, 0-100
	Confidence     int            `json:"confidence"` // min(match count * 5, 100)
	Recommendation Recommendation `json:"recommendation"`

	// Buy ladder: 2/4/6/8/10% below the latest close, plus their mean
	BuyPrices    [5]float64 `json:"buy_prices"`
	MeanBuyPrice float64    `json:"mean_buy_price"`

	TargetPrice  float64 `json:"target_price"`  // Off the breakpoint price
	TargetReturn float64 `json:"target_return"` // Relative to the latest close

	Similars []SimilarPattern `json:"similars"` // Top 10 by similarity
	RunID    string           `json:"run_id"`
}
