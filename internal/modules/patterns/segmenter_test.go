package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pivotscope/internal/modules/history"
	"github.com/aristath/pivotscope/internal/modules/universe"
)

func testSecurity() universe.Security {
	return universe.Security{Symbol: "ACME", Name: "Acme Corp", Active: true}
}

// tradingDates returns n consecutive calendar dates starting at start
func tradingDates(start string, n int) []string {
	t0, err := time.Parse("2006-01-02", start)
	if err != nil {
		panic(err)
	}
	dates := make([]string, n)
	for i := range dates {
		dates[i] = t0.AddDate(0, 0, i).Format("2006-01-02")
	}
	return dates
}

func barsWithCloses(symbol string, dates []string, closes []float64, label history.Label) []history.PriceBar {
	bars := make([]history.PriceBar, len(dates))
	for i, date := range dates {
		bars[i] = history.PriceBar{
			Symbol: symbol,
			Date:   date,
			Open:   closes[i],
			High:   closes[i],
			Low:    closes[i],
			Close:  closes[i],
			Volume: 1000,
			Label:  label,
		}
	}
	return bars
}

func TestExtract_FortyBarWindow(t *testing.T) {
	dates := tradingDates("2024-01-02", 40)
	closes := make([]float64, 40)
	for i := range closes {
		// Linear climb from 100 to 119.5; the breakpoint pins the end at 120
		closes[i] = 100 + float64(i)*0.5
	}

	breakpoints := []universe.Breakpoint{
		{Symbol: "ACME", Seq: 1, Date: dates[0], Price: 100},
		{Symbol: "ACME", Seq: 2, Date: dates[39], Price: 120},
	}
	bars := barsWithCloses("ACME", dates, closes, history.LabelRange)

	result := NewSegmenter().Extract(testSecurity(), breakpoints, bars)

	require.Len(t, result, 1)
	sp := result[0]
	assert.Equal(t, "ACME", sp.Symbol)
	assert.Equal(t, 1, sp.StartSeq)
	assert.Equal(t, 2, sp.EndSeq)
	assert.Equal(t, 40, sp.Duration)
	assert.Equal(t, 20.0, sp.EndReturn) // (120/100 - 1) * 100, from breakpoint prices
	assert.Equal(t, history.LabelRange, sp.DominantLabel)
	assert.Len(t, sp.Embedding, 40)
	assert.Equal(t, 0.0, sp.Embedding[0])
	assert.Equal(t, 1.0, sp.Embedding[39])
	assert.Greater(t, sp.Volatility, 0.0)
}

func TestExtract_FourBarWindowSkipped(t *testing.T) {
	dates := tradingDates("2024-01-02", 4)
	closes := []float64{100, 101, 102, 103}

	breakpoints := []universe.Breakpoint{
		{Symbol: "ACME", Seq: 1, Date: dates[0], Price: 100},
		{Symbol: "ACME", Seq: 2, Date: dates[3], Price: 103},
	}
	bars := barsWithCloses("ACME", dates, closes, history.LabelRange)

	assert.Empty(t, NewSegmenter().Extract(testSecurity(), breakpoints, bars))
}

func TestExtract_FiveBarWindowKept(t *testing.T) {
	dates := tradingDates("2024-01-02", 5)
	closes := []float64{100, 101, 102, 103, 104}

	breakpoints := []universe.Breakpoint{
		{Symbol: "ACME", Seq: 1, Date: dates[0], Price: 100},
		{Symbol: "ACME", Seq: 2, Date: dates[4], Price: 104},
	}
	bars := barsWithCloses("ACME", dates, closes, history.LabelRange)

	result := NewSegmenter().Extract(testSecurity(), breakpoints, bars)

	require.Len(t, result, 1)
	assert.Equal(t, 5, result[0].Duration)
}

func TestExtract_FewerThanTwoBreakpoints(t *testing.T) {
	dates := tradingDates("2024-01-02", 10)
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 100
	}
	bars := barsWithCloses("ACME", dates, closes, history.LabelRange)

	assert.Empty(t, NewSegmenter().Extract(testSecurity(), nil, bars))
	assert.Empty(t, NewSegmenter().Extract(testSecurity(), []universe.Breakpoint{
		{Symbol: "ACME", Seq: 1, Date: dates[0], Price: 100},
	}, bars))
}

func TestExtract_NoBars(t *testing.T) {
	breakpoints := []universe.Breakpoint{
		{Symbol: "ACME", Seq: 1, Date: "2024-01-02", Price: 100},
		{Symbol: "ACME", Seq: 2, Date: "2024-03-01", Price: 110},
	}

	assert.Empty(t, NewSegmenter().Extract(testSecurity(), breakpoints, nil))
}

func TestExtract_MultipleIntervals(t *testing.T) {
	dates := tradingDates("2024-01-02", 15)
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	breakpoints := []universe.Breakpoint{
		{Symbol: "ACME", Seq: 1, Date: dates[0], Price: 100},
		{Symbol: "ACME", Seq: 2, Date: dates[6], Price: 106},
		{Symbol: "ACME", Seq: 3, Date: dates[14], Price: 114},
	}
	bars := barsWithCloses("ACME", dates, closes, history.LabelRange)

	result := NewSegmenter().Extract(testSecurity(), breakpoints, bars)

	require.Len(t, result, 2)
	assert.Equal(t, 1, result[0].StartSeq)
	assert.Equal(t, 2, result[0].EndSeq)
	assert.Equal(t, 2, result[1].StartSeq)
	assert.Equal(t, 3, result[1].EndSeq)
	// Windows are inclusive on both ends, so the middle breakpoint's bar is in both
	assert.Equal(t, 7, result[0].Duration)
	assert.Equal(t, 9, result[1].Duration)
}

func TestExtract_RunningReturnExtremes(t *testing.T) {
	dates := tradingDates("2024-01-02", 6)
	closes := []float64{100, 130, 90, 105, 110, 108}

	breakpoints := []universe.Breakpoint{
		{Symbol: "ACME", Seq: 1, Date: dates[0], Price: 100},
		{Symbol: "ACME", Seq: 2, Date: dates[5], Price: 108},
	}
	bars := barsWithCloses("ACME", dates, closes, history.LabelRange)

	result := NewSegmenter().Extract(testSecurity(), breakpoints, bars)

	require.Len(t, result, 1)
	assert.Equal(t, 30.0, result[0].MaxReturn)
	assert.Equal(t, -10.0, result[0].MinReturn)
	assert.Equal(t, 8.0, result[0].EndReturn)
}

func TestDominantLabel_FrequencyAndTieBreak(t *testing.T) {
	dates := tradingDates("2024-01-02", 5)
	bars := make([]history.PriceBar, 5)
	labels := []history.Label{
		history.LabelRange,
		history.LabelBreakout,
		history.LabelRange,
		history.LabelBreakout,
		history.LabelNone, // unlabeled bars do not vote
	}
	for i := range bars {
		bars[i] = history.PriceBar{Symbol: "ACME", Date: dates[i], Close: 100, Label: labels[i]}
	}

	// Two range, two breakout: the tie resolves to the label seen first
	assert.Equal(t, history.LabelRange, dominantLabel(bars))
}

func TestDominantLabel_AllUnlabeled(t *testing.T) {
	bars := []history.PriceBar{
		{Symbol: "ACME", Date: "2024-01-02", Close: 100},
		{Symbol: "ACME", Date: "2024-01-03", Close: 101},
	}

	assert.Equal(t, history.LabelNone, dominantLabel(bars))
}

func TestBarsInWindow_ContiguousSelection(t *testing.T) {
	dates := tradingDates("2024-01-02", 10)
	bars := make([]history.PriceBar, 10)
	for i := range bars {
		bars[i] = history.PriceBar{Symbol: "ACME", Date: dates[i], Close: float64(100 + i)}
	}

	window := barsInWindow(bars, dates[2], dates[6])

	require.Len(t, window, 5)
	assert.Equal(t, dates[2], window[0].Date)
	assert.Equal(t, dates[6], window[4].Date)
}

func TestExtract_GapBetweenBarsAndBreakpoints(t *testing.T) {
	// Breakpoint dates need not match bar dates exactly; the window is date-bounded
	dates := tradingDates("2024-01-02", 8)
	closes := []float64{100, 102, 104, 106, 108, 110, 112, 114}
	bars := barsWithCloses("ACME", dates, closes, history.LabelRange)

	breakpoints := []universe.Breakpoint{
		{Symbol: "ACME", Seq: 1, Date: "2024-01-01", Price: 100}, // day before the first bar
		{Symbol: "ACME", Seq: 2, Date: "2024-01-07", Price: 110},
	}

	result := NewSegmenter().Extract(testSecurity(), breakpoints, bars)

	require.Len(t, result, 1)
	assert.Equal(t, 6, result[0].Duration, fmt.Sprintf("expected bars %s..%s", dates[0], dates[5]))
}
