package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/baro-analysis/internal/analysis"
	"github.com/roman-kulish/baro-analysis/internal/baro"
	"github.com/roman-kulish/baro-analysis/internal/metrics"
	"github.com/roman-kulish/baro-analysis/internal/storage"
)

const (
	rawPlotFile = "baro.png"
	reportFile  = "report.pdf"
)

// Run analyses every configured event window in order. Each event writes its
// artifacts to <output>/<event name>/. Without KeepGoing the first failing
// event stops the run.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	started := time.Now()

	var rec *metrics.Recorder
	if config.MetricsPath != "" {
		rec = metrics.NewRecorder()
		defer func() {
			rec.RunFinished(started, err)
			if mErr := rec.WriteToTextfile(config.MetricsPath); mErr != nil {
				err = errors.Join(err, fmt.Errorf("writing metrics: %w", mErr))
			}
		}()
	}

	windows, err := loadWindows(config)
	if err != nil {
		return err
	}

	if _, err = os.Stat(config.DataPath); err != nil {
		return fmt.Errorf("data source '%s' does not exist: %w", config.DataPath, err)
	}

	src := storage.Open(config.DataPath)
	defer src.Close()

	renderer, err := NewSpectrogramRenderer(RenderConfig{ColorTheme: config.Theme})
	if err != nil {
		return fmt.Errorf("creating spectrogram renderer: %w", err)
	}

	logger.Info("starting analysis",
		slog.String("data", config.DataPath),
		slog.Int("events", len(windows)),
		slog.String("output", config.OutputDir),
		slog.Group("spectrum",
			slog.Int("segmentLength", config.Analysis.Spectrum.SegmentLength),
			slog.Int("overlap", config.Analysis.Spectrum.Overlap),
			slog.Int("nfft", config.Analysis.Spectrum.NFFT()),
		))

	var errs []error
	for _, w := range windows {
		if err = ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}

		eventErr := runEvent(ctx, w, src, renderer, config, logger, rec)
		rec.EventFinished(eventErr)
		if eventErr == nil {
			continue
		}

		eventErr = fmt.Errorf("event %s: %w", w.Name, eventErr)
		if !config.KeepGoing {
			return eventErr
		}
		logger.Error(eventErr.Error())
		errs = append(errs, eventErr)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d events failed: %w", len(errs), len(windows), errors.Join(errs...))
	}
	return nil
}

func loadWindows(config *Config) ([]*baro.Window, error) {
	if config.EventsPath == "" {
		if config.Window == nil {
			return nil, errors.New("no event to analyse")
		}
		return []*baro.Window{config.Window}, nil
	}
	return LoadEvents(config.EventsPath)
}

func runEvent(ctx context.Context, w *baro.Window, src storage.Source, renderer *SpectrogramRenderer, config *Config, logger *slog.Logger, rec *metrics.Recorder) error {
	logger = logger.With("event", w.Name)
	logger.Info("analysing event",
		slog.String("start", baro.FormatTimestamp(w.Start)),
		slog.String("end", baro.FormatTimestamp(w.End)),
		slog.Int("markers", len(w.Markers)))

	res, err := analysis.Run(ctx, w, src, config.Analysis, logger, rec)
	if err != nil {
		return err
	}

	dir := filepath.Join(config.OutputDir, w.Name)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var artifacts []string

	stageStart := time.Now()
	rawPath := filepath.Join(dir, rawPlotFile)
	raw := &RawPlot{
		Title:   w.Name,
		Matrix:  res.Matrix,
		Markers: w.Markers,
		Start:   w.Start,
		End:     w.End,
	}
	if err = raw.Save(rawPath); err != nil {
		return fmt.Errorf("rendering raw plot: %w", err)
	}
	artifacts = append(artifacts, rawPath)

	for _, s := range res.Spectrograms {
		img, err := renderer.Render(&SpectrogramPlot{
			Title:       w.Name + " - " + s.Label,
			Spectrogram: s,
			Markers:     w.Markers,
			Config:      config.Analysis.Spectrum,
		})
		if err != nil {
			return fmt.Errorf("rendering spectrogram: %w", err)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s-spec.%s", fileSafe(s.Label), config.Format))
		if err = saveImage(path, img, config.Format); err != nil {
			return fmt.Errorf("saving spectrogram: %w", err)
		}
		artifacts = append(artifacts, path)
	}
	rec.ObserveStage("render", stageStart)

	if config.PDF {
		pdf, err := BuildReportPDF(&Report{
			Result:      res,
			Config:      config.Analysis,
			Images:      artifacts,
			GeneratedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("building report: %w", err)
		}
		reportPath := filepath.Join(dir, reportFile)
		if err = os.WriteFile(reportPath, pdf, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		logger.Info("report written",
			slog.String("path", reportPath),
			slog.String("size", humanize.Bytes(uint64(len(pdf)))))
	}

	logger.Info("event finished",
		slog.String("directory", dir),
		slog.Int("artifacts", len(artifacts)),
		slog.Int("skipped", len(res.Skipped)))

	if config.ShowPlots {
		for _, path := range artifacts {
			if err = showPlot(path); err != nil {
				logger.Warn("cannot show plot", "error", err)
			}
		}
	}
	return nil
}

// fileSafe replaces path separators so a label can be used as a file name.
func fileSafe(label string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, label)
}
