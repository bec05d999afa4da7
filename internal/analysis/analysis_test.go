package analysis

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/roman-kulish/baro-analysis/internal/align"
	"github.com/roman-kulish/baro-analysis/internal/baro"
	"github.com/roman-kulish/baro-analysis/internal/metrics"
	"github.com/roman-kulish/baro-analysis/internal/spectrum"
	"github.com/roman-kulish/baro-analysis/internal/storage"
)

// memorySource serves readings from memory and counts how often it is opened.
type memorySource struct {
	readings []baro.Reading
	opened   int
}

func (s *memorySource) Readings(_ context.Context, opts ...storage.ReaderOption) (storage.ReadingReader, error) {
	s.opened++
	return &memoryReader{readings: s.readings, pos: -1}, nil
}

func (s *memorySource) Close() error { return nil }

type memoryReader struct {
	readings []baro.Reading
	pos      int
}

func (r *memoryReader) Next(context.Context) bool {
	r.pos++
	return r.pos < len(r.readings)
}

func (r *memoryReader) Current() baro.Reading { return r.readings[r.pos] }
func (r *memoryReader) Error() error          { return nil }
func (r *memoryReader) Close() error          { return nil }

var epoch = time.Date(2021, 7, 1, 12, 0, 0, 0, time.UTC)

// sineReadings samples a 1 Hz sine on a 40 ms cadence for the given sensor.
func sineReadings(module string, sensor int64, span time.Duration) []baro.Reading {
	var out []baro.Reading
	for t := time.Duration(0); t <= span; t += 40 * time.Millisecond {
		out = append(out, baro.Reading{
			Timestamp: epoch.Add(t),
			SensorID:  sensor,
			ModuleID:  module,
			Value:     1013.25 + 0.01*math.Sin(2*math.Pi*t.Seconds()),
		})
	}
	return out
}

func TestRunProducesMatrixAndSpectrograms(t *testing.T) {
	var readings []baro.Reading
	readings = append(readings, sineReadings("B", 3, 30*time.Second)...)
	readings = append(readings, sineReadings("A", 1, 30*time.Second)...)
	// Too short for a 256-sample segment at 20 Hz.
	readings = append(readings, sineReadings("A", 2, 5*time.Second)...)

	src := &memorySource{readings: readings}
	w := &baro.Window{Name: "event", Start: epoch, End: epoch.Add(30 * time.Second)}
	rec := metrics.NewRecorder()

	res, err := Run(context.Background(), w, src, DefaultConfig(), nil, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got, want := res.Matrix.Labels, []string{"A-1", "A-2", "B-3"}; !slices.Equal(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
	if got := res.Matrix.Rows(); got != 600 {
		t.Errorf("rows = %d, want 600", got)
	}
	if len(res.Spectrograms) != 2 {
		t.Fatalf("got %d spectrograms, want 2", len(res.Spectrograms))
	}
	if !slices.Equal(res.Skipped, []string{"A-2"}) {
		t.Errorf("skipped = %v, want [A-2]", res.Skipped)
	}
	if _, ok := res.Spectrogram("B-3"); !ok {
		t.Error("no spectrogram for B-3")
	}
	if _, ok := res.Spectrogram("A-2"); ok {
		t.Error("unexpected spectrogram for skipped channel A-2")
	}
	if res.Readings != len(readings) {
		t.Errorf("readings = %d, want %d", res.Readings, len(readings))
	}
}

func TestRunValidatesWindowBeforeLoading(t *testing.T) {
	src := &memorySource{readings: sineReadings("A", 1, time.Second)}
	w := &baro.Window{Name: "event", Start: epoch.Add(time.Minute), End: epoch}

	_, err := Run(context.Background(), w, src, DefaultConfig(), nil, nil)
	if !errors.Is(err, baro.ErrInvalidWindow) {
		t.Fatalf("Run() error = %v, want ErrInvalidWindow", err)
	}
	if src.opened != 0 {
		t.Errorf("source opened %d times, want 0", src.opened)
	}
}

func TestRunRejectsOversizedWindowBeforeLoading(t *testing.T) {
	src := &memorySource{readings: sineReadings("A", 1, time.Second)}
	w, err := baro.NewWindow("event", "1970-01-01-00-00-00", "2026-10-17-00-00-00", nil)
	if err != nil {
		t.Fatalf("NewWindow() error = %v", err)
	}

	_, err = Run(context.Background(), w, src, DefaultConfig(), nil, nil)
	if !errors.Is(err, align.ErrGridTooLarge) {
		t.Fatalf("Run() error = %v, want ErrGridTooLarge", err)
	}
	if src.opened != 0 {
		t.Errorf("source opened %d times, want 0", src.opened)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	src := &memorySource{}
	w := &baro.Window{Name: "event", Start: epoch, End: epoch.Add(time.Minute)}

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero period", cfg: Config{Spectrum: spectrum.DefaultConfig()}},
		{name: "overlap too large", cfg: Config{Period: 50 * time.Millisecond, Spectrum: spectrum.Config{SegmentLength: 16, Overlap: 16}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Run(context.Background(), w, src, tt.cfg, nil, nil); err == nil {
				t.Error("Run() error = nil, want config error")
			}
		})
	}
	if src.opened != 0 {
		t.Errorf("source opened %d times, want 0", src.opened)
	}
}

func TestRunEmptyWindow(t *testing.T) {
	w := &baro.Window{Name: "quiet", Start: epoch, End: epoch.Add(time.Minute)}

	res, err := Run(context.Background(), w, &memorySource{}, DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Matrix.Width() != 0 || len(res.Spectrograms) != 0 {
		t.Errorf("got %d columns and %d spectrograms, want none", res.Matrix.Width(), len(res.Spectrograms))
	}
}

func TestRunDuplicateReading(t *testing.T) {
	readings := sineReadings("A", 1, time.Second)
	readings = append(readings, readings[3])
	w := &baro.Window{Name: "event", Start: epoch, End: epoch.Add(time.Second)}

	if _, err := Run(context.Background(), w, &memorySource{readings: readings}, DefaultConfig(), nil, nil); err == nil {
		t.Error("Run() error = nil, want duplicate reading error")
	}
}
