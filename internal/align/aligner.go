// Package align resamples irregular per-sensor pressure readings onto one
// shared uniform time grid.
package align

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/roman-kulish/baro-analysis/internal/baro"
)

const (
	// DefaultPeriod is the resample period, giving a 20 Hz signal.
	DefaultPeriod = 50 * time.Millisecond

	// MaxRows caps the grid length, about 4.8 days at DefaultPeriod. Every
	// channel holds one float per row.
	MaxRows = 1 << 23
)

var (
	// ErrDuplicateReading is returned when a sensor reports twice for the same instant.
	ErrDuplicateReading = errors.New("duplicate reading")

	// ErrInvalidPeriod is returned for a non-positive resample period.
	ErrInvalidPeriod = errors.New("invalid resample period")

	// ErrGridTooLarge is returned when a window holds more than MaxRows samples.
	ErrGridTooLarge = errors.New("resample grid too large")
)

type point struct {
	t time.Time
	v float64
}

// Aligner reshapes raw readings into a Matrix.
type Aligner struct {
	period time.Duration
}

// NewAligner creates an Aligner with the given resample period.
func NewAligner(period time.Duration) (*Aligner, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}
	return &Aligner{period: period}, nil
}

// Period returns the resample period.
func (a *Aligner) Period() time.Duration {
	return a.period
}

// Rows returns the number of grid instants in (start, end]. Windows longer
// than MaxRows periods fail with ErrGridTooLarge, which also matches
// baro.ErrInvalidWindow.
func (a *Aligner) Rows(start, end time.Time) (int, error) {
	if !start.Before(end) {
		return 0, nil
	}
	n := int64(end.Sub(start) / a.period)
	if n > MaxRows {
		return 0, fmt.Errorf("%w: %w: %s at %s is %d samples, limit is %d",
			baro.ErrInvalidWindow, ErrGridTooLarge, end.Sub(start), a.period, n, MaxRows)
	}
	return int(n), nil
}

// Grid returns the uniform timestamps start + k*period for k >= 1 that do not
// exceed end. The k = 0 sample is never part of the output.
func (a *Aligner) Grid(start, end time.Time) ([]time.Time, error) {
	n, err := a.Rows(start, end)
	if err != nil {
		return nil, err
	}
	grid := make([]time.Time, 0, n)
	for k := 1; k <= n; k++ {
		grid = append(grid, start.Add(time.Duration(k)*a.period))
	}
	return grid, nil
}

// Align builds the aligned matrix for readings already filtered to
// [start, end]. When catalog is nil it is resolved from the readings.
//
// Each output value is interpolated linearly in elapsed time between the two
// nearest known samples of its channel. Grid instants before the first or
// after the last known sample of a channel stay NaN.
func (a *Aligner) Align(start, end time.Time, readings []baro.Reading, catalog *baro.Catalog) (*Matrix, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: end time %s must be after start time %s",
			baro.ErrInvalidWindow, baro.FormatTimestamp(end), baro.FormatTimestamp(start))
	}
	grid, err := a.Grid(start, end)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = baro.ResolveCatalog(readings)
	}

	series, err := pivot(readings)
	if err != nil {
		return nil, err
	}

	sensors := catalog.Sensors()
	sort.SliceStable(sensors, func(i, j int) bool {
		return sensors[i].Label < sensors[j].Label
	})

	m := &Matrix{
		Period:     a.period,
		Timestamps: grid,
		Labels:     make([]string, 0, len(sensors)),
		Columns:    make([][]float64, 0, len(sensors)),
	}
	for _, s := range sensors {
		m.Labels = append(m.Labels, s.Label)
		m.Columns = append(m.Columns, interpolate(series[s.SensorID], grid))
	}
	return m, nil
}

// pivot groups valid readings by sensor, sorted by time. Readings without a
// value are missing cells and are dropped here; their sensor is still part
// of the catalog.
func pivot(readings []baro.Reading) (map[int64][]point, error) {
	seen := make(map[int64]map[int64]struct{})
	series := make(map[int64][]point)

	for _, r := range readings {
		instants, ok := seen[r.SensorID]
		if !ok {
			instants = make(map[int64]struct{})
			seen[r.SensorID] = instants
		}
		key := r.Timestamp.UnixNano()
		if _, dup := instants[key]; dup {
			return nil, fmt.Errorf("%w: sensor %d at %s", ErrDuplicateReading, r.SensorID, r.Timestamp.Format(time.RFC3339Nano))
		}
		instants[key] = struct{}{}

		if !r.IsValid() {
			continue
		}
		series[r.SensorID] = append(series[r.SensorID], point{t: r.Timestamp, v: r.Value})
	}

	for id := range series {
		pts := series[id]
		sort.Slice(pts, func(i, j int) bool { return pts[i].t.Before(pts[j].t) })
	}
	return series, nil
}

func interpolate(pts []point, grid []time.Time) []float64 {
	out := make([]float64, len(grid))
	for i, t := range grid {
		out[i] = valueAt(pts, t)
	}
	return out
}

func valueAt(pts []point, t time.Time) float64 {
	idx := sort.Search(len(pts), func(i int) bool { return !pts[i].t.Before(t) })
	if idx < len(pts) && pts[idx].t.Equal(t) {
		return pts[idx].v
	}
	if idx == 0 || idx == len(pts) {
		return math.NaN()
	}

	p0, p1 := pts[idx-1], pts[idx]
	span := float64(p1.t.Sub(p0.t))
	elapsed := float64(t.Sub(p0.t))
	return p0.v + (p1.v-p0.v)*elapsed/span
}
