package baro

import (
	"strings"
	"time"
)

// TimestampLayout is the textual timestamp format used by CLI arguments,
// event logs and sensor log rows.
const TimestampLayout = "2006-01-02-15-04-05"

// Log rows are parsed leniently: the fixed layout may carry fractional seconds
// ("2024-05-01-10-00-00.040"), and ISO-like forms are accepted as well.
var rowTimestampLayouts = []string{
	TimestampLayout,
	time.DateTime,
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// ParseTimestamp parses s using TimestampLayout. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseRowTimestamp parses a sensor log timestamp. It accepts TimestampLayout
// with an optional fractional second suffix and a few ISO 8601 variants.
func ParseRowTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	var firstErr error
	for _, layout := range rowTimestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// FormatTimestamp renders t using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
