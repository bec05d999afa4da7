package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roman-kulish/baro-analysis/internal/baro"
)

// Required sensor log columns. Extra columns are ignored.
const (
	ColumnTimestamp = "timestamp"
	ColumnSensorID  = "sensor_id"
	ColumnModuleID  = "module_id"
	ColumnValue     = "value"
)

// RequiredColumns lists the columns every sensor log must carry.
var RequiredColumns = []string{ColumnTimestamp, ColumnSensorID, ColumnModuleID, ColumnValue}

// CSVSource reads readings from a CSV sensor log with a header row.
type CSVSource struct {
	path string
}

// NewCSVSource creates a source for the CSV log at path. The file is opened
// lazily by Readings.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Readings opens the log and validates its header.
func (s *CSVSource) Readings(ctx context.Context, opts ...ReaderOption) (ReadingReader, error) {
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening sensor log: %w", err)
	}

	r := &CSVReader{
		source: filepath.Base(s.path),
		file:   file,
		filter: f,
	}
	if err = r.init(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

func (s *CSVSource) Close() error {
	return nil
}

// CSVReader streams readings from a CSV log, dropping rows outside the
// configured time range. Every row is parsed, so a malformed row anywhere in
// the file stops the iteration.
type CSVReader struct {
	source string
	file   *os.File
	csv    *csv.Reader
	filter *filter

	columns map[string]int
	current baro.Reading
	err     error
}

func (r *CSVReader) init() error {
	r.csv = csv.NewReader(bufio.NewReader(r.file))
	r.csv.ReuseRecord = true
	r.csv.TrimLeadingSpace = true

	header, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &baro.MissingColumnError{Source: r.source, Column: ColumnTimestamp}
		}
		return fmt.Errorf("reading header: %w", err)
	}

	r.columns = make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, ok := r.columns[name]; !ok {
			r.columns[name] = i
		}
	}
	for _, col := range RequiredColumns {
		if _, ok := r.columns[col]; !ok {
			return &baro.MissingColumnError{Source: r.source, Column: col}
		}
	}
	return nil
}

func (r *CSVReader) Next(ctx context.Context) bool {
	if r.err != nil || r.csv == nil {
		return false
	}

	for {
		select {
		case <-ctx.Done():
			r.err = ctx.Err()
			return false
		default:
		}

		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			return false
		}
		if err != nil {
			pErr := &baro.ParseError{Source: r.source, Field: "row", Err: err}
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				pErr.Line = csvErr.Line
				pErr.Err = csvErr.Err
			}
			r.err = pErr
			return false
		}

		line, _ := r.csv.FieldPos(0)
		reading, err := r.parse(record, line)
		if err != nil {
			r.err = err
			return false
		}
		if !r.filter.accepts(reading.Timestamp) {
			continue
		}

		r.current = reading
		return true
	}
}

func (r *CSVReader) parse(record []string, line int) (baro.Reading, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[r.columns[name]])
	}

	var reading baro.Reading
	var err error

	raw := field(ColumnTimestamp)
	if reading.Timestamp, err = baro.ParseRowTimestamp(raw); err != nil {
		return reading, &baro.ParseError{Source: r.source, Line: line, Field: ColumnTimestamp, Value: raw, Err: err}
	}

	raw = field(ColumnSensorID)
	if reading.SensorID, err = parseSensorID(raw); err != nil {
		return reading, &baro.ParseError{Source: r.source, Line: line, Field: ColumnSensorID, Value: raw, Err: err}
	}

	reading.ModuleID = field(ColumnModuleID)

	raw = field(ColumnValue)
	if reading.Value, err = parseValue(raw); err != nil {
		return reading, &baro.ParseError{Source: r.source, Line: line, Field: ColumnValue, Value: raw, Err: err}
	}

	return reading, nil
}

func (r *CSVReader) Current() baro.Reading {
	return r.current
}

func (r *CSVReader) Error() error {
	return r.err
}

func (r *CSVReader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.csv = nil
	return err
}

// parseSensorID accepts integers and integral floats ("3.0"), the latter
// being how spreadsheet exports often write ids.
func parseSensorID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return id, nil
	}

	f, fErr := strconv.ParseFloat(s, 64)
	if fErr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, err
	}
	return int64(f), nil
}

// parseValue treats empty and NaN cells as missing observations.
func parseValue(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "", "nan", "null", "na":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
