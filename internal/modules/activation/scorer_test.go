package activation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/pivotscope/internal/modules/history"
)

func TestReturnComponent_LinearWithClamps(t *testing.T) {
	assert.Equal(t, 0.0, returnComponent(-80))
	assert.Equal(t, 0.0, returnComponent(-50))
	assert.InDelta(t, 17.5, returnComponent(0), 1e-9)
	assert.InDelta(t, 28.0, returnComponent(30), 1e-9)
	assert.Equal(t, 35.0, returnComponent(50))
	assert.Equal(t, 35.0, returnComponent(400))
}

func TestVolumeComponent_LogScaled(t *testing.T) {
	assert.Equal(t, 0.0, volumeComponent(0))
	assert.Equal(t, 0.0, volumeComponent(-10))
	assert.InDelta(t, 2.0, volumeComponent(9), 1e-9)       // log10(10) * 2
	assert.InDelta(t, 12.0, volumeComponent(999_999), 1e-6) // log10(1e6) * 2
}

func TestLabelComponent(t *testing.T) {
	assert.Equal(t, 25.0, labelComponent(history.LabelBreakout))
	assert.Equal(t, 20.0, labelComponent(history.LabelBreakoutPullback))
	assert.Equal(t, 15.0, labelComponent(history.LabelRange))
	assert.Equal(t, 5.0, labelComponent(history.LabelBreakdown))
	assert.Equal(t, 10.0, labelComponent(history.LabelCollapse))
	assert.Equal(t, 10.0, labelComponent(history.LabelNone))
}

func TestProximityComponent(t *testing.T) {
	assert.Equal(t, 20.0, proximityComponent(0))
	assert.Equal(t, 15.0, proximityComponent(5))
	assert.Equal(t, 15.0, proximityComponent(-5))
	assert.Equal(t, 0.0, proximityComponent(20))
	assert.Equal(t, 0.0, proximityComponent(-35))
}

func TestScore_ProximityOnlyWithBreakpoint(t *testing.T) {
	scorer := NewScorer()

	base := ScoreInputs{
		TotalReturn: 0,
		AvgVolume:   999_999,
		Label:       history.LabelRange,
	}

	without := scorer.Score(base)
	assert.InDelta(t, 44.5, without, 1e-9) // 17.5 + 12 + 15

	base.HasBreakpoint = true
	base.DeviationPct = 2
	with := scorer.Score(base)
	assert.InDelta(t, 62.5, with, 1e-9) // plus 18 proximity
}

func TestScore_RoundedToOneDecimal(t *testing.T) {
	score := NewScorer().Score(ScoreInputs{TotalReturn: 3.33, AvgVolume: 123_456})

	assert.Equal(t, score, math.Round(score*10)/10)
}

func TestScore_ClampedAt100(t *testing.T) {
	score := NewScorer().Score(ScoreInputs{
		TotalReturn:   500,
		AvgVolume:     1e12,
		Label:         history.LabelBreakout,
		HasBreakpoint: true,
		DeviationPct:  0,
	})

	assert.Equal(t, 100.0, score)
}

func TestAvgVolume(t *testing.T) {
	assert.Equal(t, 0.0, AvgVolume(nil))

	// Below the SMA window: plain mean
	assert.Equal(t, 200.0, AvgVolume([]float64{100, 200, 300}))

	// Full window: SMA over the last twenty values
	volumes := make([]float64, volumeWindow)
	for i := range volumes {
		volumes[i] = float64((i + 1) * 100)
	}
	assert.InDelta(t, 1050.0, AvgVolume(volumes), 1e-9)
}
