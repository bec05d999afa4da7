package baro

import (
	"errors"
	"testing"
	"time"
)

func TestNewWindow(t *testing.T) {
	w, err := NewWindow("quake", "2024-05-01-10-00-00", "2024-05-01-11-30-00",
		[]string{"2024-05-01-10-15-00", "", "2024-05-01-10-45-30"})
	if err != nil {
		t.Fatalf("Failed to create window: %v", err)
	}

	if !w.Start.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected start: %s", w.Start)
	}
	if w.Duration() != 90*time.Minute {
		t.Errorf("Expected 90m duration, got %s", w.Duration())
	}
	if len(w.Markers) != 2 {
		t.Fatalf("Expected 2 markers, got %d", len(w.Markers))
	}
	if !w.Contains(w.Start) || !w.Contains(w.End) {
		t.Error("Window bounds should be inclusive")
	}
	if w.Contains(w.End.Add(time.Nanosecond)) {
		t.Error("Instant after end should not be contained")
	}
}

func TestNewWindow_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		event   string
		start   string
		end     string
		markers []string
		target  error
	}{
		{"start after end", "ev", "2024-05-01-11-00-00", "2024-05-01-10-00-00", nil, ErrInvalidWindow},
		{"start equals end", "ev", "2024-05-01-10-00-00", "2024-05-01-10-00-00", nil, ErrInvalidWindow},
		{"empty name", "", "2024-05-01-10-00-00", "2024-05-01-11-00-00", nil, ErrInvalidWindow},
		{"name with separator", "a/b", "2024-05-01-10-00-00", "2024-05-01-11-00-00", nil, ErrInvalidWindow},
		{"malformed start", "ev", "2024-05-01 10:00:00", "2024-05-01-11-00-00", nil, ErrParse},
		{"malformed end", "ev", "2024-05-01-10-00-00", "yesterday", nil, ErrParse},
		{"malformed marker", "ev", "2024-05-01-10-00-00", "2024-05-01-11-00-00", []string{"10:30"}, ErrParse},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWindow(tc.event, tc.start, tc.end, tc.markers)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !errors.Is(err, tc.target) {
				t.Errorf("Expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestParseRowTimestamp(t *testing.T) {
	testCases := []struct {
		in       string
		expected time.Time
	}{
		{"2024-05-01-10-00-00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01-10-00-00.040", time.Date(2024, 5, 1, 10, 0, 0, 40_000_000, time.UTC)},
		{"2024-05-01 10:00:01.5", time.Date(2024, 5, 1, 10, 0, 1, 500_000_000, time.UTC)},
		{"2024-05-01T10:00:02", time.Date(2024, 5, 1, 10, 0, 2, 0, time.UTC)},
		{"2024-05-01T12:00:03+02:00", time.Date(2024, 5, 1, 10, 0, 3, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseRowTimestamp(tc.in)
			if err != nil {
				t.Fatalf("Failed to parse: %v", err)
			}
			if !got.Equal(tc.expected) {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}

	if _, err := ParseRowTimestamp("not a time"); err == nil {
		t.Error("Expected error for malformed timestamp")
	}
}

func TestParseError_Message(t *testing.T) {
	err := &ParseError{Source: "log.csv", Line: 12, Field: "timestamp", Value: "x", Err: errors.New("bad")}
	if got := err.Error(); got != `log.csv:12: parsing timestamp "x": bad` {
		t.Errorf("Unexpected message: %s", got)
	}
	if !errors.Is(err, ErrParse) {
		t.Error("ParseError should match ErrParse")
	}
}
