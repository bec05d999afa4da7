package app

import "math"

const (
	defaultMinLevel = -4.0 // log10 Pa^2/Hz
	defaultMaxLevel = 2.0  // log10 Pa^2/Hz

	// levelBinWidth is the histogram resolution in decades.
	levelBinWidth = 0.05

	// minimumLevelRange keeps flat spectrograms from saturating the palette.
	minimumLevelRange = 1.0

	// For 20 samples:
	// - 5% percentile  = 1 sample
	// - 95% percentile = 19th sample
	minimumSampleCount = 20
)

// LevelBounds is the log10 PSD range mapped onto a colour palette.
type LevelBounds struct {
	Min  float64 // 5th percentile level
	Max  float64 // 95th percentile level
	Mean float64 // Mean level
}

func defaultLevelBounds() LevelBounds {
	return LevelBounds{
		Min:  defaultMinLevel,
		Max:  defaultMaxLevel,
		Mean: (defaultMinLevel + defaultMaxLevel) / 2,
	}
}

// LevelHistogram counts finite levels in fixed-width bins.
type LevelHistogram struct {
	bins       map[int]uint64 // Map of bin index to count
	totalCount uint64         // Total number of samples
	sum        float64
	minBin     int // Cache for min bin
	maxBin     int // Cache for max bin
}

func NewLevelHistogram() *LevelHistogram {
	return &LevelHistogram{
		bins:   make(map[int]uint64),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

func getBinIndex(level float64) int {
	return int(math.Floor(level / levelBinWidth))
}

// Update adds a level. NaN and infinite levels (zero power) are ignored.
func (h *LevelHistogram) Update(level float64) {
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return
	}

	bin := getBinIndex(level)
	h.bins[bin]++
	h.totalCount++
	h.sum += level

	if bin < h.minBin {
		h.minBin = bin
	}
	if bin > h.maxBin {
		h.maxBin = bin
	}
}

// Count returns the number of levels added.
func (h *LevelHistogram) Count() uint64 {
	return h.totalCount
}

// Clear resets the histogram
func (h *LevelHistogram) Clear() {
	h.bins = make(map[int]uint64)
	h.totalCount = 0
	h.sum = 0
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32
}

// GetPercentileBounds returns the 5th to 95th percentile range, widened to at
// least one decade and padded by a 10% margin.
func (h *LevelHistogram) GetPercentileBounds() LevelBounds {
	if h.totalCount < minimumSampleCount {
		return defaultLevelBounds()
	}

	target5th := h.totalCount * 5 / 100

	var count uint64
	var min5th, max95th int

	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += h.bins[bin]
		if count >= target5th {
			min5th = bin
			break
		}
	}

	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += h.bins[bin]
		if count >= target5th {
			max95th = bin + 1
			break
		}
	}

	lo := float64(min5th) * levelBinWidth
	hi := float64(max95th) * levelBinWidth

	if hi-lo < minimumLevelRange {
		center := (hi + lo) / 2
		lo = center - minimumLevelRange/2
		hi = center + minimumLevelRange/2
	}

	margin := (hi - lo) / 10
	return LevelBounds{
		Min:  lo - margin,
		Max:  hi + margin,
		Mean: h.sum / float64(h.totalCount),
	}
}

// LevelBoundsOf computes percentile bounds over a level matrix.
func LevelBoundsOf(levels [][]float64) LevelBounds {
	h := NewLevelHistogram()
	for _, row := range levels {
		for _, v := range row {
			h.Update(v)
		}
	}
	return h.GetPercentileBounds()
}
