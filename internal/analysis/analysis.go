// Package analysis runs the numeric pipeline for one analysis window: load
// the raw readings, resolve the sensor catalog, align every channel onto a
// uniform grid and estimate a spectrogram per channel.
//
// Rendering is not part of this package; callers consume the Result.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/baro-analysis/internal/align"
	"github.com/roman-kulish/baro-analysis/internal/baro"
	"github.com/roman-kulish/baro-analysis/internal/metrics"
	"github.com/roman-kulish/baro-analysis/internal/spectrum"
	"github.com/roman-kulish/baro-analysis/internal/storage"
)

// Config holds the numeric parameters of a run.
type Config struct {
	Period   time.Duration   `yaml:"period" json:"period"`
	Spectrum spectrum.Config `yaml:"spectrum" json:"spectrum"`
}

// DefaultConfig returns the 50 ms grid with the short spectral preset.
func DefaultConfig() Config {
	return Config{
		Period:   align.DefaultPeriod,
		Spectrum: spectrum.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("analysis.Config: period must be positive, got %s", c.Period)
	}
	if err := c.Spectrum.Validate(); err != nil {
		return fmt.Errorf("analysis.Config: %w", err)
	}
	return nil
}

// Result is the output of one run.
type Result struct {
	Window       *baro.Window
	Catalog      *baro.Catalog
	Readings     int
	Matrix       *align.Matrix
	Spectrograms []*spectrum.Spectrogram
	Skipped      []string // Labels of channels without enough samples
}

// Spectrogram returns the spectrogram for label, if one was computed.
func (r *Result) Spectrogram(label string) (*spectrum.Spectrogram, bool) {
	for _, s := range r.Spectrograms {
		if s.Label == label {
			return s, true
		}
	}
	return nil, false
}

// Run analyses window w using readings from src. The window is validated
// before src is touched, including its size on the resample grid. Channels
// too short for one spectral segment are skipped and listed in
// Result.Skipped. logger and rec may be nil.
func Run(ctx context.Context, w *baro.Window, src storage.Source, cfg Config, logger *slog.Logger, rec *metrics.Recorder) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if w == nil {
		return nil, fmt.Errorf("%w: window required", baro.ErrInvalidWindow)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	aligner, err := align.NewAligner(cfg.Period)
	if err != nil {
		return nil, err
	}
	if _, err = aligner.Rows(w.Start, w.End); err != nil {
		return nil, err
	}
	estimator, err := spectrum.NewEstimator(cfg.Spectrum, align.SampleRate(cfg.Period))
	if err != nil {
		return nil, err
	}

	logger = logger.With("event", w.Name)

	stageStart := time.Now()
	readings, err := storage.ReadAll(ctx, src, storage.WithWindow(w))
	if err != nil {
		return nil, fmt.Errorf("loading readings: %w", err)
	}
	rec.ObserveStage("load", stageStart)
	rec.ReadingsLoaded(len(readings))

	catalog := baro.ResolveCatalog(readings)
	for _, c := range catalog.Conflicts() {
		logger.Warn("sensor reported under another module, keeping first seen",
			"sensor", c.SensorID, "kept", c.Kept, "seen", c.Seen)
	}
	logger.Info("readings loaded",
		"readings", humanize.Comma(int64(len(readings))),
		"sensors", catalog.Len())

	stageStart = time.Now()
	matrix, err := aligner.Align(w.Start, w.End, readings, catalog)
	if err != nil {
		return nil, fmt.Errorf("aligning readings: %w", err)
	}
	rec.ObserveStage("align", stageStart)

	if gaps := matrix.Gaps(); gaps > 0 {
		rec.GapCells(gaps)
		logger.Warn("aligned matrix has unresolved cells",
			"gaps", humanize.Comma(int64(gaps)),
			"cells", humanize.Comma(int64(matrix.Rows()*matrix.Width())))
	}
	if matrix.Width() == 0 {
		logger.Warn("no sensor has readings inside the window")
	}

	res := &Result{
		Window:   w,
		Catalog:  catalog,
		Readings: len(readings),
		Matrix:   matrix,
	}

	stageStart = time.Now()
	for i, label := range matrix.Labels {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		spec, err := estimator.Estimate(label, matrix.Columns[i], w.Start)
		if errors.Is(err, spectrum.ErrInsufficientSamples) {
			logger.Warn("skipping channel", "channel", label, "error", err)
			res.Skipped = append(res.Skipped, label)
			rec.ChannelSkipped()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("estimating spectrogram for %s: %w", label, err)
		}

		res.Spectrograms = append(res.Spectrograms, spec)
		rec.ChannelAnalysed()
		logger.Debug("spectrogram estimated",
			"channel", label,
			"segments", spec.Segments(),
			"bins", spec.Bins())
	}
	rec.ObserveStage("spectrum", stageStart)

	return res, nil
}
