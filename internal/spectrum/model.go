package spectrum

import (
	"math"
	"time"
)

// Spectrogram is the time-frequency power spectral density of one channel.
type Spectrogram struct {
	Label       string      `json:"label"`       // Sensor label the channel belongs to
	Origin      time.Time   `json:"origin"`      // Instant the segment offsets are measured from
	SampleRate  float64     `json:"sampleRate"`  // Sampling frequency of the channel in Hz
	Frequencies []float64   `json:"frequencies"` // Bin frequencies in Hz, ascending from 0
	Offsets     []float64   `json:"offsets"`     // Segment centres in seconds relative to Origin
	Power       [][]float64 `json:"power"`       // Power[segment][bin] in Pa^2/Hz, NaN for segments with gaps
}

// Segments returns the number of time segments.
func (s *Spectrogram) Segments() int {
	return len(s.Offsets)
}

// Bins returns the number of frequency bins.
func (s *Spectrogram) Bins() int {
	return len(s.Frequencies)
}

// Timestamps converts segment offsets into absolute instants.
func (s *Spectrogram) Timestamps() []time.Time {
	out := make([]time.Time, len(s.Offsets))
	for i, off := range s.Offsets {
		out[i] = s.Origin.Add(time.Duration(math.Round(off * float64(time.Second))))
	}
	return out
}

// Log10 returns the base-10 logarithm of the PSD grid. Zero power maps to
// -Inf and NaN stays NaN.
func (s *Spectrogram) Log10() [][]float64 {
	out := make([][]float64, len(s.Power))
	for i, row := range s.Power {
		out[i] = make([]float64, len(row))
		for j, p := range row {
			out[i][j] = math.Log10(p)
		}
	}
	return out
}

// ToPascal converts a hectopascal series to pascal.
func ToPascal(hpa []float64) []float64 {
	out := make([]float64, len(hpa))
	for i, v := range hpa {
		out[i] = v * 100
	}
	return out
}
