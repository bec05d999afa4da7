package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/baro-analysis/internal/analysis"
	"github.com/roman-kulish/baro-analysis/internal/baro"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// writeSensorLog writes three sensors sampled every 40 ms for span.
func writeSensorLog(t *testing.T, dir string, span time.Duration) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("timestamp,sensor_id,module_id,value\n")
	sensors := []struct {
		module string
		id     int
	}{{"A", 1}, {"A", 2}, {"B", 3}}
	for off := time.Duration(0); off <= span; off += 40 * time.Millisecond {
		ts := renderEpoch.Add(off).Format("2006-01-02 15:04:05.000")
		for i, s := range sensors {
			v := 1013.25 + 0.02*math.Sin(2*math.Pi*float64(i+1)*off.Seconds())
			fmt.Fprintf(&b, "%s,%d,%s,%.5f\n", ts, s.id, s.module, v)
		}
	}

	path := filepath.Join(dir, "sensors.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("writing sensor log: %v", err)
	}
	return path
}

func writeEventLog(t *testing.T, dir string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, "events.csv")
	content := "name,markers,start,end\n" + strings.Join(rows, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing event log: %v", err)
	}
	return path
}

func testConfig(dir string) *Config {
	c := NewConfig()
	c.OutputDir = filepath.Join(dir, "out")
	c.Analysis = analysis.DefaultConfig()
	return c
}

func TestRunEventLog(t *testing.T) {
	dir := t.TempDir()

	config := testConfig(dir)
	config.DataPath = writeSensorLog(t, dir, 2*time.Minute)
	config.EventsPath = writeEventLog(t, dir,
		"first,2021-07-01-12-00-20,2021-07-01-12-00-00,2021-07-01-12-00-40",
		"second,,2021-07-01-12-00-40,2021-07-01-12-01-20",
		"third,2021-07-01-12-01-30|2021-07-01-12-01-40,2021-07-01-12-01-20,2021-07-01-12-02-00",
	)
	config.PDF = true
	config.MetricsPath = filepath.Join(dir, "baro.prom")

	if err := Run(context.Background(), config, discardLogger); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, event := range []string{"first", "second", "third"} {
		for _, name := range []string{rawPlotFile, "A-1-spec.png", "A-2-spec.png", "B-3-spec.png", reportFile} {
			path := filepath.Join(config.OutputDir, event, name)
			info, err := os.Stat(path)
			if err != nil {
				t.Errorf("missing artifact: %v", err)
				continue
			}
			if info.Size() == 0 {
				t.Errorf("%s is empty", path)
			}
		}
	}

	pdf, err := os.ReadFile(filepath.Join(config.OutputDir, "first", reportFile))
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("report is not a PDF")
	}

	metrics, err := os.ReadFile(config.MetricsPath)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	if !strings.Contains(string(metrics), `baro_events_total{result="success"} 3`) {
		t.Errorf("metrics do not count three successful events:\n%s", metrics)
	}
}

func TestRunSingleEventJPEG(t *testing.T) {
	dir := t.TempDir()

	config := testConfig(dir)
	config.DataPath = writeSensorLog(t, dir, 40*time.Second)
	config.Format = ImageJPEG
	w, err := baro.NewWindow("gust", "2021-07-01-12-00-00", "2021-07-01-12-00-40", nil)
	if err != nil {
		t.Fatalf("NewWindow() error = %v", err)
	}
	config.Window = w

	if err = Run(context.Background(), config, discardLogger); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err = os.Stat(filepath.Join(config.OutputDir, "gust", "B-3-spec.jpeg")); err != nil {
		t.Errorf("missing jpeg spectrogram: %v", err)
	}
	if _, err = os.Stat(filepath.Join(config.OutputDir, "gust", reportFile)); !os.IsNotExist(err) {
		t.Errorf("report written without PDF enabled: %v", err)
	}
}

func TestRunKeepGoing(t *testing.T) {
	tests := []struct {
		name      string
		keepGoing bool
		wantDirs  []string
	}{
		{name: "stop on first failure", keepGoing: false, wantDirs: []string{"first"}},
		{name: "keep going", keepGoing: true, wantDirs: []string{"first", "third"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			config := testConfig(dir)
			config.DataPath = writeSensorLog(t, dir, 80*time.Second)
			config.KeepGoing = tt.keepGoing
			config.EventsPath = writeEventLog(t, dir,
				"first,,2021-07-01-12-00-00,2021-07-01-12-00-40",
				"empty,,2021-07-02-00-00-00,2021-07-02-00-01-00",
				"third,,2021-07-01-12-00-40,2021-07-01-12-01-20",
			)

			err := Run(context.Background(), config, discardLogger)
			if err == nil {
				t.Fatal("Run() error = nil, want failure for the empty window")
			}
			if !strings.Contains(err.Error(), "event empty") {
				t.Errorf("error %q does not name the failing event", err)
			}

			entries, err := os.ReadDir(config.OutputDir)
			if err != nil {
				t.Fatalf("reading output dir: %v", err)
			}
			var got []string
			for _, e := range entries {
				if _, statErr := os.Stat(filepath.Join(config.OutputDir, e.Name(), rawPlotFile)); statErr == nil {
					got = append(got, e.Name())
				}
			}
			if strings.Join(got, ",") != strings.Join(tt.wantDirs, ",") {
				t.Errorf("completed events = %v, want %v", got, tt.wantDirs)
			}
		})
	}
}

func TestRunMissingDataSource(t *testing.T) {
	dir := t.TempDir()

	config := testConfig(dir)
	config.DataPath = filepath.Join(dir, "nope.csv")
	w, err := baro.NewWindow("x", "2021-07-01-12-00-00", "2021-07-01-12-00-40", nil)
	if err != nil {
		t.Fatalf("NewWindow() error = %v", err)
	}
	config.Window = w

	if err = Run(context.Background(), config, discardLogger); err == nil {
		t.Error("Run() error = nil for a missing data source")
	}
}

func TestFileSafe(t *testing.T) {
	if got := fileSafe(`A/1\2:3`); got != "A_1_2_3" {
		t.Errorf("fileSafe() = %q", got)
	}
}
