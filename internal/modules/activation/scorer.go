// Package activation manages which securities belong to the active universe.
// A coarse 0-100 management score ranks every known security; the top ranks are
// activated for analysis and the rest deactivated with a recorded reason. This
// score is deliberately simpler than the pattern engine's investment score: it
// only decides who gets analyzed, not what to buy.
package activation

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/aristath/pivotscope/internal/modules/history"
)

const (
	// MaxActive caps the active universe size
	MaxActive = 100

	// MinScore is the activation floor: below it a security stays inactive
	// regardless of rank
	MinScore = 60.0

	// MinAvgVolume filters out illiquid securities (20-day average)
	MinAvgVolume = 100_000

	// volumeWindow is the SMA window for the liquidity component
	volumeWindow = 20
)

// ScoreInputs carries the per-security facts the management score is built from
type ScoreInputs struct {
	TotalReturn   float64       // Percent, earliest stored close to latest close
	AvgVolume     float64       // 20-day simple moving average of daily volume
	Label         history.Label // Latest bar's label
	DeviationPct  float64       // Latest close vs latest breakpoint price, percent
	HasBreakpoint bool
}

// Scorer computes the 0-100 management score from four additive components
type Scorer struct{}

// NewScorer creates a new activation scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score sums the return, liquidity, label, and breakpoint-proximity components
// and clamps to [0, 100], rounded to one decimal
func (s *Scorer) Score(in ScoreInputs) float64 {
	score := returnComponent(in.TotalReturn) +
		volumeComponent(in.AvgVolume) +
		labelComponent(in.Label)

	if in.HasBreakpoint {
		score += proximityComponent(in.DeviationPct)
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return math.Round(score*10) / 10
}

// AvgVolume computes the liquidity input from recent daily volumes
// (ascending by date). Histories shorter than the SMA window fall back
// to a plain mean.
func AvgVolume(volumes []float64) float64 {
	if len(volumes) == 0 {
		return 0
	}
	if len(volumes) < volumeWindow {
		var sum float64
		for _, v := range volumes {
			sum += v
		}
		return sum / float64(len(volumes))
	}
	sma := talib.Sma(volumes, volumeWindow)
	return sma[len(sma)-1]
}

// returnComponent maps total return linearly onto [0, 35]:
// -50% or worse scores 0, flat scores 17.5, +50% or better scores 35
func returnComponent(returnPct float64) float64 {
	c := (returnPct + 50) * 0.35
	if c < 0 {
		return 0
	}
	if c > 35 {
		return 35
	}
	return c
}

// volumeComponent maps average volume log-scaled onto [0, 20]
func volumeComponent(avgVolume float64) float64 {
	if avgVolume <= 0 {
		return 0
	}
	c := math.Log10(avgVolume+1) * 2
	if c > 20 {
		return 20
	}
	return c
}

// labelComponent scores the latest bar's label, max 25.
// Unlabeled and collapse both take the neutral 10.
func labelComponent(label history.Label) float64 {
	switch label {
	case history.LabelBreakout:
		return 25
	case history.LabelBreakoutPullback:
		return 20
	case history.LabelRange:
		return 15
	case history.LabelBreakdown:
		return 5
	default:
		return 10
	}
}

// proximityComponent rewards prices near the latest breakpoint, max 20:
// one point lost per percent of absolute deviation
func proximityComponent(deviationPct float64) float64 {
	c := 20 - math.Abs(deviationPct)
	if c < 0 {
		return 0
	}
	return c
}
