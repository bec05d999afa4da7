package spectrum

import (
	"fmt"
	"math/bits"
)

const (
	PresetShort Preset = "short"
	PresetLong  Preset = "long"
)

// Preset names one of the historical estimator configurations.
type Preset string

func (p Preset) String() string {
	return string(p)
}

// Config holds the Welch-style segmenting parameters of the estimator.
type Config struct {
	SegmentLength int `yaml:"segmentLength" json:"segmentLength"` // Samples per FFT segment
	Overlap       int `yaml:"overlap" json:"overlap"`             // Samples shared by consecutive segments
	FFTLength     int `yaml:"fftLength" json:"fftLength"`         // Zero-padded FFT size, 0 means SegmentLength
}

var presets = map[Preset]Config{
	PresetShort: {SegmentLength: 256, Overlap: 32, FFTLength: 256},
	PresetLong:  {SegmentLength: 600, Overlap: 100, FFTLength: NextPowerOfTwo(600)},
}

// DefaultConfig returns the short preset.
func DefaultConfig() Config {
	return presets[PresetShort]
}

// ConfigForPreset returns the configuration of a named preset.
func ConfigForPreset(p Preset) (Config, error) {
	c, ok := presets[p]
	if !ok {
		return Config{}, fmt.Errorf("spectrum.Config: unknown preset: %s", p)
	}
	return c, nil
}

// NFFT returns the effective FFT length.
func (c Config) NFFT() int {
	if c.FFTLength == 0 {
		return c.SegmentLength
	}
	return c.FFTLength
}

// Step returns the distance in samples between consecutive segment starts.
func (c Config) Step() int {
	return c.SegmentLength - c.Overlap
}

func (c Config) Validate() error {
	if c.SegmentLength < 2 {
		return fmt.Errorf("spectrum.Config: segment length must be at least 2: %d", c.SegmentLength)
	}
	if c.Overlap < 0 || c.Overlap >= c.SegmentLength {
		return fmt.Errorf("spectrum.Config: overlap must be in [0, %d): %d", c.SegmentLength, c.Overlap)
	}
	if c.FFTLength != 0 && c.FFTLength < c.SegmentLength {
		return fmt.Errorf("spectrum.Config: fft length %d is shorter than segment length %d", c.FFTLength, c.SegmentLength)
	}
	return nil
}

// NextPowerOfTwo returns the smallest power of two >= n.
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
