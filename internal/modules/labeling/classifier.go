// Package labeling assigns the per-day pattern label to price bars.
//
// A bar's label is decided by comparing its close against four reference levels
// derived from the prices of all breakpoints strictly before the interval the bar
// falls in: the maximum, the second-highest, the median and the minimum. Bars in
// the very first interval have no reference levels and stay unlabeled.
package labeling

import (
	"sort"

	"github.com/aristath/pivotscope/internal/modules/history"
)

// RefLevels holds the four reference levels for one breakpoint interval
type RefLevels struct {
	Max    float64
	Second float64 // Second-highest; equals Max when only one prior breakpoint exists
	Median float64
	Min    float64
}

// ComputeRefLevels derives the reference levels from prior breakpoint prices.
// Returns nil when there are no prior prices (first interval).
func ComputeRefLevels(prices []float64) *RefLevels {
	if len(prices) == 0 {
		return nil
	}

	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	levels := &RefLevels{
		Max:    sorted[len(sorted)-1],
		Min:    sorted[0],
		Median: interpolatedMedian(sorted),
	}

	if len(sorted) >= 2 {
		levels.Second = sorted[len(sorted)-2]
	} else {
		levels.Second = levels.Max
	}

	return levels
}

// Classify maps a close price to its label given the interval's reference levels.
// Comparisons against max/second/median are strict; the breakdown boundary is
// inclusive (a close exactly at the minimum is breakdown, not collapse).
func Classify(close float64, levels RefLevels) history.Label {
	switch {
	case close > levels.Max:
		return history.LabelBreakout
	case close > levels.Second:
		return history.LabelBreakoutPullback
	case close > levels.Median:
		return history.LabelRange
	case close >= levels.Min:
		return history.LabelBreakdown
	default:
		return history.LabelCollapse
	}
}

// interpolatedMedian computes the continuous median of an already-sorted slice
// (mean of the two middle values for even lengths)
func interpolatedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
