package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/baro-analysis/internal/baro"
)

// SqliteReadingReader implements ReadingReader over an archive.
type SqliteReadingReader struct {
	db     *sql.DB
	filter *filter

	rows    *sql.Rows
	current baro.Reading
	err     error
}

func newSqliteReadingReader(ctx context.Context, db *sql.DB, opts ...ReaderOption) (*SqliteReadingReader, error) {
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}

	sr := &SqliteReadingReader{db: db, filter: f}
	if err = sr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return sr, nil
}

func (sr *SqliteReadingReader) init(ctx context.Context) (err error) {
	if sr.db == nil {
		return errors.New("database connection required")
	}

	from, to := int64(math.MinInt64), int64(math.MaxInt64)
	if sr.filter.startTime != nil {
		from = sr.filter.startTime.UnixNano()
	}
	if sr.filter.endTime != nil {
		to = sr.filter.endTime.UnixNano()
	}

	stmt, err := sr.db.PrepareContext(ctx, selectReadingsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if sr.rows, err = stmt.QueryContext(ctx, from, to); err != nil {
		return fmt.Errorf("querying readings: %w", err)
	}
	return nil
}

func (sr *SqliteReadingReader) Next(ctx context.Context) bool {
	if sr.err != nil || sr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		sr.err = ctx.Err()
		return false
	default:
	}

	if !sr.rows.Next() {
		sr.err = sr.rows.Err()
		return false
	}

	var data readingData
	if err := sr.rows.Scan(&data.TimestampNs, &data.SensorID, &data.ModuleID, &data.Value); err != nil {
		sr.err = fmt.Errorf("scanning reading: %w", err)
		return false
	}

	sr.current = fromReadingData(data)
	return true
}

func (sr *SqliteReadingReader) Current() baro.Reading {
	return sr.current
}

func (sr *SqliteReadingReader) Error() error {
	return sr.err
}

func (sr *SqliteReadingReader) Close() error {
	if sr.rows == nil {
		return nil
	}
	err := sr.rows.Close()
	sr.rows = nil
	return err
}

func toReadingData(r baro.Reading) readingData {
	return readingData{
		TimestampNs: r.Timestamp.UTC().UnixNano(),
		SensorID:    r.SensorID,
		ModuleID:    r.ModuleID,
		Value:       toSQLNullFloat(r.Value),
	}
}

func fromReadingData(d readingData) baro.Reading {
	return baro.Reading{
		Timestamp: time.Unix(0, d.TimestampNs).UTC(),
		SensorID:  d.SensorID,
		ModuleID:  d.ModuleID,
		Value:     fromSQLNullFloat(d.Value),
	}
}
