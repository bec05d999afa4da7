package app

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/roman-kulish/baro-analysis/internal/baro"
)

const markerSeparator = "|"

// LoadEvents reads an event log: one event per row with the columns name,
// pipe-separated markers, start and end. An optional header row is skipped.
// Every row is parsed before any event runs, so a malformed log fails fast.
func LoadEvents(path string) ([]*baro.Window, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	return ParseEvents(f, filepath.Base(path))
}

// ParseEvents parses an event log from r; source names it in errors.
func ParseEvents(r io.Reader, source string) ([]*baro.Window, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var (
		windows []*baro.Window
		names   = make(map[string]int)
		first   = true
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &baro.ParseError{Source: source, Line: csvErr.Line, Field: "row", Err: csvErr.Err}
			}
			return nil, fmt.Errorf("reading event log: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if isEventHeader(record) {
				continue
			}
		}

		w, err := parseEvent(record)
		if err != nil {
			var pErr *baro.ParseError
			if errors.As(err, &pErr) {
				pErr.Source, pErr.Line = source, line
				return nil, pErr
			}
			return nil, fmt.Errorf("%s:%d: %w", source, line, err)
		}
		if prev, ok := names[w.Name]; ok {
			return nil, fmt.Errorf("%s:%d: %w: event %q already defined on line %d",
				source, line, baro.ErrInvalidWindow, w.Name, prev)
		}
		names[w.Name] = line
		windows = append(windows, w)
	}

	if len(windows) == 0 {
		return nil, fmt.Errorf("%s: event log has no events", source)
	}
	return windows, nil
}

func parseEvent(record []string) (*baro.Window, error) {
	var markers []string
	if m := strings.TrimSpace(record[1]); m != "" {
		markers = strings.Split(m, markerSeparator)
		for i := range markers {
			markers[i] = strings.TrimSpace(markers[i])
		}
	}
	return baro.NewWindow(record[0], strings.TrimSpace(record[2]), strings.TrimSpace(record[3]), markers)
}

// isEventHeader reports whether a row is a column header rather than an event.
func isEventHeader(record []string) bool {
	if _, err := baro.ParseTimestamp(strings.TrimSpace(record[2])); err == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(record[0])) {
	case "name", "event", "event_name":
		return true
	}
	return false
}
