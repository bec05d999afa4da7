package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/roman-kulish/baro-analysis/internal/baro"
)

// Source provides raw sensor readings, optionally restricted to a time range.
type Source interface {
	// Readings opens a reader over the readings that satisfy the filters.
	// The returned reader must be closed after use.
	Readings(ctx context.Context, opts ...ReaderOption) (ReadingReader, error)

	// Close releases resources held by the source. It is safe to call Close
	// multiple times.
	Close() error
}

// Archive is a Source that also accepts imported readings.
type Archive interface {
	Source

	// CreateImport registers a new import and returns its identifier.
	CreateImport(ctx context.Context, source string) (importID int64, err error)

	// StoreReadings saves readings for an import atomically and returns how
	// many were stored. Readings of a sensor at an instant already in the
	// archive are skipped.
	StoreReadings(ctx context.Context, importID int64, readings []baro.Reading) (stored int64, err error)

	// Imports lists the imports held by the archive.
	Imports(ctx context.Context) ([]*Import, error)
}

// ReadingReader is an iterator over raw readings.
type ReadingReader interface {
	// Next advances the iterator and returns true if there is another reading,
	// false when the iteration is complete or an error occurred.
	Next(context.Context) bool

	// Current returns the reading at the iterator position.
	Current() baro.Reading

	// Error returns the error that stopped the iteration, if any.
	Error() error

	// Close releases the underlying file or database rows.
	Close() error
}

// ReaderOption configures the filters of a ReadingReader.
type ReaderOption func(*filter)

type filter struct {
	startTime *time.Time // Optional inclusive lower bound
	endTime   *time.Time // Optional inclusive upper bound
}

func newFilter(opts []ReaderOption) (*filter, error) {
	f := &filter{}
	for _, opt := range opts {
		opt(f)
	}
	if f.startTime != nil && f.endTime != nil && f.startTime.After(*f.endTime) {
		return nil, fmt.Errorf("start time %s is after end time %s",
			baro.FormatTimestamp(*f.startTime), baro.FormatTimestamp(*f.endTime))
	}
	return f, nil
}

func (f *filter) accepts(t time.Time) bool {
	if f.startTime != nil && t.Before(*f.startTime) {
		return false
	}
	if f.endTime != nil && t.After(*f.endTime) {
		return false
	}
	return true
}

// WithStartTime excludes readings before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(f *filter) {
		f.startTime = &t
	}
}

// WithEndTime excludes readings after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(f *filter) {
		f.endTime = &t
	}
}

// WithTimeRange keeps readings in the closed interval [startTime, endTime].
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(f *filter) {
		f.startTime = &startTime
		f.endTime = &endTime
	}
}

// WithWindow keeps readings inside an analysis window.
func WithWindow(w *baro.Window) ReaderOption {
	return WithTimeRange(w.Start, w.End)
}

// Open returns a Source for path, chosen by file extension: SQLite archives
// (.db, .sqlite, .sqlite3) or CSV logs (anything else).
func Open(path string) Source {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSqliteStore(path)
	default:
		return NewCSVSource(path)
	}
}

// ReadAll drains a reader created from src.
func ReadAll(ctx context.Context, src Source, opts ...ReaderOption) (readings []baro.Reading, err error) {
	r, err := src.Readings(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer closeWithError(r, &err)

	for r.Next(ctx) {
		readings = append(readings, r.Current())
	}
	if err = r.Error(); err != nil {
		return nil, err
	}
	return readings, nil
}
