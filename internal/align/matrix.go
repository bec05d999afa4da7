package align

import (
	"math"
	"time"
)

// Matrix is the aligned multi-channel signal: a uniform timestamp index and
// one column of pressure values (hPa) per sensor, ordered by label.
//
// Unresolved cells (no interpolation support at the edges of the window)
// hold NaN.
type Matrix struct {
	Period     time.Duration
	Timestamps []time.Time
	Labels     []string
	Columns    [][]float64 // Columns[c][r] is channel c at Timestamps[r]
}

// Rows returns the number of samples per channel.
func (m *Matrix) Rows() int {
	return len(m.Timestamps)
}

// Width returns the number of channels.
func (m *Matrix) Width() int {
	return len(m.Labels)
}

// SampleRate returns the sampling frequency in Hz implied by the period.
func (m *Matrix) SampleRate() float64 {
	return SampleRate(m.Period)
}

// Channel returns the column for a label.
func (m *Matrix) Channel(label string) ([]float64, bool) {
	for i, l := range m.Labels {
		if l == label {
			return m.Columns[i], true
		}
	}
	return nil, false
}

// Gaps returns the number of unresolved cells across all channels.
func (m *Matrix) Gaps() int {
	var n int
	for _, col := range m.Columns {
		for _, v := range col {
			if math.IsNaN(v) {
				n++
			}
		}
	}
	return n
}

// Start returns the first timestamp of the index, zero if the matrix has no rows.
func (m *Matrix) Start() time.Time {
	if len(m.Timestamps) == 0 {
		return time.Time{}
	}
	return m.Timestamps[0]
}

// End returns the last timestamp of the index, zero if the matrix has no rows.
func (m *Matrix) End() time.Time {
	if len(m.Timestamps) == 0 {
		return time.Time{}
	}
	return m.Timestamps[len(m.Timestamps)-1]
}

// SampleRate converts a resample period to a sampling frequency in Hz.
func SampleRate(period time.Duration) float64 {
	if period <= 0 {
		return 0
	}
	return float64(time.Second) / float64(period)
}
