package storage

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/baro-analysis/internal/baro"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestCSVSourceReadings(t *testing.T) {
	path := writeFile(t, "log.csv", `timestamp,sensor_id,module_id,value,extra
2021-07-01 12:00:00,1,A,1013.25,x
2021-07-01 12:00:01,2.0,A,,x
2021-07-01-12-00-02,3,B,NaN,x
2021-07-01T12:00:03.5Z,1,A,1013.30,x
`)

	readings, err := ReadAll(context.Background(), NewCSVSource(path))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(readings) != 4 {
		t.Fatalf("got %d readings, want 4", len(readings))
	}

	first := readings[0]
	wantTS := time.Date(2021, 7, 1, 12, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(wantTS) || first.SensorID != 1 || first.ModuleID != "A" || first.Value != 1013.25 {
		t.Errorf("first reading = %+v", first)
	}
	if readings[1].SensorID != 2 || !math.IsNaN(readings[1].Value) {
		t.Errorf("second reading = %+v, want sensor 2 with NaN value", readings[1])
	}
	if !math.IsNaN(readings[2].Value) {
		t.Errorf("third reading value = %v, want NaN", readings[2].Value)
	}
	if got := readings[3].Timestamp.Nanosecond(); got != 500_000_000 {
		t.Errorf("fourth reading nanos = %d, want 500000000", got)
	}
}

func TestCSVSourceTimeRange(t *testing.T) {
	path := writeFile(t, "log.csv", `timestamp,sensor_id,module_id,value
2021-07-01 11:59:59,1,A,1
2021-07-01 12:00:00,1,A,2
2021-07-01 12:00:05,1,A,3
2021-07-01 12:00:10,1,A,4
2021-07-01 12:00:11,1,A,5
`)

	start := time.Date(2021, 7, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Second)

	readings, err := ReadAll(context.Background(), NewCSVSource(path), WithTimeRange(start, end))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("got %d readings, want 3 (bounds inclusive)", len(readings))
	}
	if readings[0].Value != 2 || readings[2].Value != 4 {
		t.Errorf("values = %v, %v, want 2, 4", readings[0].Value, readings[2].Value)
	}
}

func TestCSVSourceMissingColumn(t *testing.T) {
	path := writeFile(t, "log.csv", "timestamp,sensor_id,value\n2021-07-01 12:00:00,1,1013\n")

	_, err := NewCSVSource(path).Readings(context.Background())
	var mcErr *baro.MissingColumnError
	if !errors.As(err, &mcErr) {
		t.Fatalf("Readings() error = %v, want MissingColumnError", err)
	}
	if mcErr.Column != ColumnModuleID {
		t.Errorf("missing column = %q, want %q", mcErr.Column, ColumnModuleID)
	}
}

func TestCSVSourceMalformedRows(t *testing.T) {
	tests := []struct {
		name      string
		row       string
		wantField string
	}{
		{name: "timestamp", row: "yesterday,1,A,1013", wantField: ColumnTimestamp},
		{name: "sensor id", row: "2021-07-01 12:00:01,one,A,1013", wantField: ColumnSensorID},
		{name: "fractional sensor id", row: "2021-07-01 12:00:01,1.5,A,1013", wantField: ColumnSensorID},
		{name: "value", row: "2021-07-01 12:00:01,1,A,high", wantField: ColumnValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "log.csv", "timestamp,sensor_id,module_id,value\n2021-07-01 12:00:00,1,A,1013\n"+tt.row+"\n")

			_, err := ReadAll(context.Background(), NewCSVSource(path))
			if !errors.Is(err, baro.ErrParse) {
				t.Fatalf("ReadAll() error = %v, want ErrParse", err)
			}

			var pErr *baro.ParseError
			if !errors.As(err, &pErr) {
				t.Fatalf("error %T is not a ParseError", err)
			}
			if pErr.Line != 3 {
				t.Errorf("line = %d, want 3", pErr.Line)
			}
			if pErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", pErr.Field, tt.wantField)
			}
		})
	}
}

func TestCSVSourceMissingFile(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "absent.csv")).Readings(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Readings() error = %v, want os.ErrNotExist", err)
	}
}

func TestOpenByExtension(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "log.csv", want: "*storage.CSVSource"},
		{path: "log.txt", want: "*storage.CSVSource"},
		{path: "archive.db", want: "*storage.SqliteStore"},
		{path: "archive.SQLITE", want: "*storage.SqliteStore"},
		{path: "archive.sqlite3", want: "*storage.SqliteStore"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var got string
			switch Open(tt.path).(type) {
			case *CSVSource:
				got = "*storage.CSVSource"
			case *SqliteStore:
				got = "*storage.SqliteStore"
			}
			if got != tt.want {
				t.Errorf("Open(%q) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestFilterRejectsInvertedRange(t *testing.T) {
	start := time.Date(2021, 7, 1, 12, 0, 0, 0, time.UTC)
	if _, err := newFilter([]ReaderOption{WithTimeRange(start, start.Add(-time.Second))}); err == nil {
		t.Error("newFilter() error = nil, want inverted range error")
	}
}
