package app

import (
	"math"
	"testing"
)

func TestLevelHistogramDefaultsWithFewSamples(t *testing.T) {
	h := NewLevelHistogram()
	for i := 0; i < minimumSampleCount-1; i++ {
		h.Update(float64(i))
	}
	h.Update(math.NaN())
	h.Update(math.Inf(-1))

	if h.Count() != minimumSampleCount-1 {
		t.Errorf("Count() = %d, want %d", h.Count(), minimumSampleCount-1)
	}
	if got := h.GetPercentileBounds(); got != defaultLevelBounds() {
		t.Errorf("GetPercentileBounds() = %+v, want defaults", got)
	}
}

func TestLevelBoundsOfPercentiles(t *testing.T) {
	// 1000 levels spread evenly over [-3, 3), plus outliers.
	levels := make([][]float64, 10)
	for i := range levels {
		levels[i] = make([]float64, 100)
		for j := range levels[i] {
			levels[i][j] = -3 + 6*float64(i*100+j)/1000
		}
	}
	levels[0][0] = -50
	levels[9][99] = 50

	b := LevelBoundsOf(levels)

	if b.Min > -2.5 || b.Min < -3.5 {
		t.Errorf("Min = %.3f, want about -3.3 (5th percentile minus margin)", b.Min)
	}
	if b.Max < 2.5 || b.Max > 3.5 {
		t.Errorf("Max = %.3f, want about 3.3 (95th percentile plus margin)", b.Max)
	}
	if math.Abs(b.Mean) > 0.1 {
		t.Errorf("Mean = %.3f, want about 0", b.Mean)
	}
}

func TestLevelBoundsMinimumRange(t *testing.T) {
	levels := [][]float64{make([]float64, 50)}
	for i := range levels[0] {
		levels[0][i] = 1.0
	}

	b := LevelBoundsOf(levels)
	if got := b.Max - b.Min; got < minimumLevelRange {
		t.Errorf("range = %.3f, want at least %.1f", got, minimumLevelRange)
	}
	if b.Min > 1 || b.Max < 1 {
		t.Errorf("bounds %+v do not contain the level", b)
	}
}

func TestLevelHistogramClear(t *testing.T) {
	h := NewLevelHistogram()
	h.Update(1)
	h.Clear()
	if h.Count() != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", h.Count())
	}
}
