package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/baro-analysis/internal/metrics"
	"github.com/roman-kulish/baro-analysis/internal/storage"
)

// Run imports the configured sensor logs into the archive, or lists the
// archive contents when config.List is set.
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

	store, err := createStorage(config.DatabasePath, !config.List)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer func() {
		if cErr := store.Close(); cErr != nil {
			err = errors.Join(err, fmt.Errorf("closing archive: %w", cErr))
		}
	}()

	if config.List {
		return listImports(ctx, store, logger)
	}

	for _, path := range config.Logs {
		if _, err = os.Stat(path); err != nil {
			return fmt.Errorf("sensor log '%s' does not exist: %w", path, err)
		}
	}

	logger.Info("importing sensor logs",
		slog.String("archive", config.DatabasePath),
		slog.Int("logs", len(config.Logs)),
		slog.Int("batchSize", config.BatchSize))

	im := NewImporter(store, logger, WithMaxBatchSize(config.BatchSize), WithMetrics(rec))
	summaries, err := im.Import(ctx, config.Logs)
	if err != nil {
		return err
	}

	var total int
	for _, s := range summaries {
		total += s.Readings
		logger.Info("sensor log imported",
			slog.Int64("import", s.ImportID),
			slog.String("source", s.Source),
			slog.String("readings", humanize.Comma(int64(s.Readings))))
	}
	logger.Info("import finished",
		slog.String("readings", humanize.Comma(int64(total))),
		slog.Duration("took", time.Since(started)))

	return nil
}

// createStorage opens the archive at path. The parent directory must exist;
// the database itself is created on first write unless it must already exist.
func createStorage(path string, create bool) (*storage.SqliteStore, error) {
	dir := filepath.Dir(path)
	stat, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dir)
	}
	if !create {
		if _, err = os.Stat(path); err != nil {
			return nil, fmt.Errorf("archive '%s' does not exist: %w", path, err)
		}
	}
	return storage.NewSqliteStore(path), nil
}

func listImports(ctx context.Context, store storage.Archive, logger *slog.Logger) error {
	imports, err := store.Imports(ctx)
	if err != nil {
		return fmt.Errorf("listing imports: %w", err)
	}
	if len(imports) == 0 {
		logger.Info("archive is empty")
		return nil
	}
	for _, imp := range imports {
		logger.Info("import",
			slog.Int64("id", imp.ID),
			slog.String("source", imp.Source),
			slog.String("importedAt", imp.ImportedAt.Format(time.RFC3339)),
			slog.String("age", humanize.Time(imp.ImportedAt)),
			slog.String("readings", humanize.Comma(imp.Readings)))
	}
	return nil
}
