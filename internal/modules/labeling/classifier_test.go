package labeling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pivotscope/internal/modules/history"
)

func TestComputeRefLevels(t *testing.T) {
	levels := ComputeRefLevels([]float64{50, 120, 80, 100})
	require.NotNil(t, levels)

	assert.Equal(t, 120.0, levels.Max)
	assert.Equal(t, 100.0, levels.Second)
	assert.Equal(t, 90.0, levels.Median) // mean of 80 and 100
	assert.Equal(t, 50.0, levels.Min)
}

func TestComputeRefLevels_OddCount(t *testing.T) {
	levels := ComputeRefLevels([]float64{90, 70, 110})
	require.NotNil(t, levels)

	assert.Equal(t, 90.0, levels.Median)
}

func TestComputeRefLevels_SinglePrice(t *testing.T) {
	levels := ComputeRefLevels([]float64{85})
	require.NotNil(t, levels)

	// With one prior breakpoint every level collapses onto it
	assert.Equal(t, 85.0, levels.Max)
	assert.Equal(t, 85.0, levels.Second)
	assert.Equal(t, 85.0, levels.Median)
	assert.Equal(t, 85.0, levels.Min)
}

func TestComputeRefLevels_Empty(t *testing.T) {
	assert.Nil(t, ComputeRefLevels(nil))
	assert.Nil(t, ComputeRefLevels([]float64{}))
}

func TestClassify(t *testing.T) {
	levels := RefLevels{Max: 120, Second: 100, Median: 90, Min: 50}

	cases := []struct {
		close float64
		want  history.Label
	}{
		{130, history.LabelBreakout},
		{120.01, history.LabelBreakout},
		{120, history.LabelBreakoutPullback}, // at the max is not a breakout
		{100.5, history.LabelBreakoutPullback},
		{100, history.LabelRange}, // at the second-highest is not a pullback
		{90.5, history.LabelRange},
		{90, history.LabelBreakdown}, // at the median is not range
		{60, history.LabelBreakdown},
		{50, history.LabelBreakdown}, // minimum boundary is inclusive
		{49.99, history.LabelCollapse},
		{10, history.LabelCollapse},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.close, levels), "close %.2f", c.close)
	}
}

func TestClassify_CollapsedLevels(t *testing.T) {
	// Single prior breakpoint: everything above it is a breakout, at it breakdown
	levels := RefLevels{Max: 85, Second: 85, Median: 85, Min: 85}

	assert.Equal(t, history.LabelBreakout, Classify(90, levels))
	assert.Equal(t, history.LabelBreakdown, Classify(85, levels))
	assert.Equal(t, history.LabelCollapse, Classify(80, levels))
}
