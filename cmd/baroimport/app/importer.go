package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/baro-analysis/internal/baro"
	"github.com/roman-kulish/baro-analysis/internal/metrics"
	"github.com/roman-kulish/baro-analysis/internal/storage"
)

// WithMaxBatchSize sets the maximum number of readings stored within a single
// database transaction.
func WithMaxBatchSize(size int) func(*Importer) {
	return func(im *Importer) {
		im.maxBatchSize = size
	}
}

// WithMetrics sets the recorder counting imported readings.
func WithMetrics(rec *metrics.Recorder) func(*Importer) {
	return func(im *Importer) {
		im.metrics = rec
	}
}

// Summary describes one imported sensor log.
type Summary struct {
	ImportID int64
	Source   string
	Readings int // Readings stored; rows already archived are not counted
}

type batch struct {
	log      int // index into the summaries
	readings []baro.Reading
}

// Importer parses sensor logs concurrently and stores their readings through
// a single writer, since the archive accepts one writer at a time.
type Importer struct {
	store   storage.Archive
	logger  *slog.Logger
	metrics *metrics.Recorder

	maxBatchSize int
}

// NewImporter creates a new Importer
func NewImporter(store storage.Archive, logger *slog.Logger, options ...func(*Importer)) *Importer {
	im := Importer{
		store:        store,
		logger:       logger,
		maxBatchSize: defaultBatchSize,
	}

	for _, option := range options {
		option(&im)
	}

	return &im
}

// Import registers one import per log, then streams every log into the
// archive. The first failure cancels the remaining work; readings already
// committed stay in the archive.
func (im *Importer) Import(ctx context.Context, paths []string) ([]Summary, error) {
	if len(paths) == 0 {
		return nil, errors.New("no sensor logs to import")
	}
	if im.maxBatchSize <= 0 {
		return nil, fmt.Errorf("invalid batch size: %d", im.maxBatchSize)
	}

	summaries := make([]Summary, len(paths))
	for i, path := range paths {
		importID, err := im.store.CreateImport(ctx, filepath.Base(path))
		if err != nil {
			return nil, fmt.Errorf("creating import for %s: %w", path, err)
		}
		summaries[i] = Summary{ImportID: importID, Source: path}
	}

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan batch, len(paths))

	var readers sync.WaitGroup
	for i, path := range paths {
		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			if err := im.readLog(gctx, i, path, batches); err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return im.storeBatches(gctx, batches, summaries)
	})

	go func() {
		readers.Wait()
		close(batches)
	}()

	if err := g.Wait(); err != nil {
		return summaries, err
	}
	return summaries, nil
}

// readLog streams one log and sends its readings in batches.
func (im *Importer) readLog(ctx context.Context, log int, path string, batches chan<- batch) (err error) {
	started := time.Now()

	reader, err := storage.NewCSVSource(path).Readings(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := reader.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	buf := make([]baro.Reading, 0, im.maxBatchSize)
	send := func() error {
		select {
		case batches <- batch{log: log, readings: buf}:
		case <-ctx.Done():
			return ctx.Err()
		}
		buf = make([]baro.Reading, 0, im.maxBatchSize)
		return nil
	}

	var total int
	for reader.Next(ctx) {
		buf = append(buf, reader.Current())
		total++
		if len(buf) == im.maxBatchSize {
			if err = send(); err != nil {
				return err
			}
		}
	}
	if err = reader.Error(); err != nil {
		return err
	}
	if len(buf) > 0 {
		if err = send(); err != nil {
			return err
		}
	}

	im.logger.Debug("sensor log parsed",
		slog.String("path", path),
		slog.String("readings", humanize.Comma(int64(total))),
		slog.Duration("took", time.Since(started)))
	return nil
}

// storeBatches is the only archive writer.
func (im *Importer) storeBatches(ctx context.Context, batches <-chan batch, summaries []Summary) error {
	for b := range batches {
		s := &summaries[b.log]
		stored, err := im.store.StoreReadings(ctx, s.ImportID, b.readings)
		if err != nil {
			return fmt.Errorf("storing readings from %s: %w", s.Source, err)
		}
		if skipped := len(b.readings) - int(stored); skipped > 0 {
			im.logger.Debug("readings already archived",
				slog.String("source", s.Source),
				slog.Int("skipped", skipped))
		}
		s.Readings += int(stored)
		im.metrics.ReadingsLoaded(int(stored))
	}
	return nil
}
