package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecorderWriteToTextfile(t *testing.T) {
	r := NewRecorder()
	start := time.Now()

	r.ReadingsLoaded(750)
	r.ChannelAnalysed()
	r.ChannelAnalysed()
	r.ChannelSkipped()
	r.GapCells(4)
	r.EventFinished(nil)
	r.EventFinished(errors.New("boom"))
	r.ObserveStage("align", start)
	r.RunFinished(start, nil)

	path := filepath.Join(t.TempDir(), "baro.prom")
	if err := r.WriteToTextfile(path); err != nil {
		t.Fatalf("WriteToTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	text := string(data)

	for _, want := range []string{
		"baro_readings_loaded_total 750",
		`baro_channels_total{outcome="analysed"} 2`,
		`baro_channels_total{outcome="skipped"} 1`,
		"baro_gap_cells_total 4",
		`baro_events_total{result="success"} 1`,
		`baro_events_total{result="error"} 1`,
		`baro_stage_latency_seconds_count{stage="align"} 1`,
		"baro_run_duration_seconds_count 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder

	r.ReadingsLoaded(1)
	r.ChannelAnalysed()
	r.ChannelSkipped()
	r.GapCells(1)
	r.EventFinished(nil)
	r.ObserveStage("align", time.Now())
	r.RunFinished(time.Now(), nil)

	if err := r.WriteToTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("WriteToTextfile() on nil recorder error = %v", err)
	}
	if r.Registry() != nil {
		t.Error("Registry() on nil recorder is not nil")
	}
}
