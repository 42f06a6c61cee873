package patterns

import (
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/universe"
)

// MinWindowBars is the minimum number of price bars a breakpoint interval must
// contain to yield a subpattern. Shorter windows carry too little shape to compare
// and are skipped silently. The same floor applies to the truncated comparison
// length in the matcher.
const MinWindowBars = 5

// Segmenter decomposes a security's breakpoint history into subpatterns
type Segmenter struct{}

// NewSegmenter creates a new segmenter
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Extract produces one subpattern per consecutive breakpoint pair whose window
// holds at least MinWindowBars price bars. Fewer than two breakpoints or an empty
// price history yields an empty result, not an error.
//
// The bars slice must be ordered ascending by date; breakpoints ascending by
// sequence number.
func (s *Segmenter) Extract(sec universe.Security, breakpoints []universe.Breakpoint, bars []history.PriceBar) []Subpattern {
	if len(breakpoints) < 2 || len(bars) == 0 {
		return nil
	}

	var subpatterns []Subpattern

	for i := 0; i < len(breakpoints)-1; i++ {
		start := breakpoints[i]
		end := breakpoints[i+1]

		window := barsInWindow(bars, start.Date, end.Date)
		if len(window) < MinWindowBars {
			continue
		}

		sp := buildSubpattern(sec, start, end, window)
		subpatterns = append(subpatterns, sp)
	}

	return subpatterns
}

// buildSubpattern computes the summary statistics and shape embedding for one window
func buildSubpattern(sec universe.Security, start, end universe.Breakpoint, window []history.PriceBar) Subpattern {
	// Running return series: each close relative to the interval's opening price
	returns := make([]float64, len(window))
	closes := make([]float64, len(window))
	for i, bar := range window {
		returns[i] = (bar.Close/start.Price - 1) * 100
		closes[i] = bar.Close
	}

	maxReturn, minReturn := returns[0], returns[0]
	for _, r := range returns[1:] {
		if r > maxReturn {
			maxReturn = r
		}
		if r < minReturn {
			minReturn = r
		}
	}

	return Subpattern{
		Symbol:        sec.Symbol,
		Name:          sec.Name,
		StartSeq:      start.Seq,
		EndSeq:        end.Seq,
		StartDate:     start.Date,
		StartPrice:    start.Price,
		EndDate:       end.Date,
		EndPrice:      end.Price,
		Duration:      len(window),
		EndReturn:     round2((end.Price/start.Price - 1) * 100),
		MaxReturn:     round2(maxReturn),
		MinReturn:     round2(minReturn),
		Volatility:    round2(stat.StdDev(returns, nil)), // Sample (n-1) standard deviation
		DominantLabel: dominantLabel(window),
		Embedding:     Normalize(closes),
	}
}

// barsInWindow selects bars with startDate <= date <= endDate.
// Bars are ordered by date, so the window is a contiguous slice.
func barsInWindow(bars []history.PriceBar, startDate, endDate string) []history.PriceBar {
	lo := 0
	for lo < len(bars) && bars[lo].Date < startDate {
		lo++
	}
	hi := lo
	for hi < len(bars) && bars[hi].Date <= endDate {
		hi++
	}
	return bars[lo:hi]
}

// dominantLabel returns the most frequent label in the window. Ties resolve to the
// label encountered first, making the mode deterministic regardless of map order.
// Unlabeled bars do not vote.
func dominantLabel(window []history.PriceBar) history.Label {
	counts := make(map[history.Label]int, len(history.AllLabels))
	var order []history.Label

	for _, bar := range window {
		if bar.Label == history.LabelNone {
			continue
		}
		if _, seen := counts[bar.Label]; !seen {
			order = append(order, bar.Label)
		}
		counts[bar.Label]++
	}

	best := history.LabelNone
	bestCount := 0
	for _, label := range order {
		if counts[label] > bestCount {
			best = label
			bestCount = counts[label]
		}
	}

	return best
}
