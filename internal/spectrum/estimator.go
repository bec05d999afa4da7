// Package spectrum estimates spectrograms of aligned pressure channels.
//
// Each channel is converted from hPa to Pa and cut into overlapping segments.
// Every segment is detrended by its mean, weighted with a symmetric Hamming
// window, zero-padded to the FFT length and transformed. The one-sided power
// spectral density is scaled by the sample rate and the window energy, so the
// result is in Pa^2/Hz.
//
// # Usage
//
//	est, err := spectrum.NewEstimator(spectrum.DefaultConfig(), 20)
//	spec, err := est.Estimate("A-1", channel, windowStart)
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// ErrInsufficientSamples is returned when a channel holds fewer valid samples
// than a single segment needs.
var ErrInsufficientSamples = errors.New("insufficient samples")

// Estimator computes spectrograms with a fixed configuration. It is not safe
// for concurrent use.
type Estimator struct {
	config     Config
	sampleRate float64

	window []float64
	scale  float64
	fft    *fourier.FFT
	buf    []float64
	coeffs []complex128
}

// NewEstimator creates an estimator for channels sampled at sampleRate Hz.
func NewEstimator(config Config, sampleRate float64) (*Estimator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 || math.IsInf(sampleRate, 0) || math.IsNaN(sampleRate) {
		return nil, fmt.Errorf("spectrum.Estimator: invalid sample rate: %f", sampleRate)
	}

	w := make([]float64, config.SegmentLength)
	for i := range w {
		w[i] = 1
	}
	w = window.Hamming(w)

	var energy float64
	for _, v := range w {
		energy += v * v
	}

	nfft := config.NFFT()
	return &Estimator{
		config:     config,
		sampleRate: sampleRate,
		window:     w,
		scale:      1 / (sampleRate * energy),
		fft:        fourier.NewFFT(nfft),
		buf:        make([]float64, nfft),
		coeffs:     make([]complex128, nfft/2+1),
	}, nil
}

// Config returns the estimator configuration.
func (e *Estimator) Config() Config {
	return e.config
}

// Window returns a copy of the segment window.
func (e *Estimator) Window() []float64 {
	return append([]float64(nil), e.window...)
}

// Frequencies returns the one-sided bin frequencies in Hz.
func (e *Estimator) Frequencies() []float64 {
	nfft := e.config.NFFT()
	freqs := make([]float64, nfft/2+1)
	for k := range freqs {
		freqs[k] = float64(k) * e.sampleRate / float64(nfft)
	}
	return freqs
}

// Estimate computes the spectrogram of a channel given in hPa. Segment
// offsets of the result are seconds after origin. Segments overlapping
// unresolved (NaN) samples yield NaN power.
func (e *Estimator) Estimate(label string, channel []float64, origin time.Time) (*Spectrogram, error) {
	l := e.config.SegmentLength
	if valid := countFinite(channel); valid < l {
		return nil, fmt.Errorf("%w: channel %s has %d valid samples, segment length is %d",
			ErrInsufficientSamples, label, valid, l)
	}

	x := ToPascal(channel)
	step := e.config.Step()
	segments := (len(x) - e.config.Overlap) / step

	spec := &Spectrogram{
		Label:       label,
		Origin:      origin,
		SampleRate:  e.sampleRate,
		Frequencies: e.Frequencies(),
		Offsets:     make([]float64, segments),
		Power:       make([][]float64, segments),
	}

	for i := 0; i < segments; i++ {
		start := i * step
		spec.Offsets[i] = (float64(l)/2 + float64(start)) / e.sampleRate
		spec.Power[i] = e.segmentPSD(x[start : start+l])
	}
	return spec, nil
}

func (e *Estimator) segmentPSD(seg []float64) []float64 {
	psd := make([]float64, len(e.coeffs))

	var mean float64
	for _, v := range seg {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			for k := range psd {
				psd[k] = math.NaN()
			}
			return psd
		}
		mean += v
	}
	mean /= float64(len(seg))

	clear(e.buf)
	for i, v := range seg {
		e.buf[i] = (v - mean) * e.window[i]
	}
	e.coeffs = e.fft.Coefficients(e.coeffs, e.buf)

	nfft := len(e.buf)
	for k, c := range e.coeffs {
		p := (real(c)*real(c) + imag(c)*imag(c)) * e.scale
		// One-sided: fold the negative frequencies except DC and Nyquist.
		if k != 0 && !(nfft%2 == 0 && k == nfft/2) {
			p *= 2
		}
		psd[k] = p
	}
	return psd
}

func countFinite(xs []float64) int {
	var n int
	for _, v := range xs {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			n++
		}
	}
	return n
}
