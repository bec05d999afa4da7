package baro

import (
	"fmt"
	"strings"
	"time"
)

// Window is the unit of work for one analysis run: a named event, the
// observation interval and the instants to mark on every plot.
type Window struct {
	Name    string
	Start   time.Time
	End     time.Time
	Markers []time.Time
}

// NewWindow builds a Window from its textual form. All timestamps must use
// TimestampLayout. The window is validated before it is returned.
func NewWindow(name, start, end string, markers []string) (*Window, error) {
	w := Window{Name: strings.TrimSpace(name)}

	var err error
	if w.Start, err = ParseTimestamp(start); err != nil {
		return nil, &ParseError{Source: "window", Field: "start time", Value: start, Err: err}
	}
	if w.End, err = ParseTimestamp(end); err != nil {
		return nil, &ParseError{Source: "window", Field: "end time", Value: end, Err: err}
	}

	for _, m := range markers {
		if strings.TrimSpace(m) == "" {
			continue
		}
		t, err := ParseTimestamp(m)
		if err != nil {
			return nil, &ParseError{Source: "window", Field: "marker", Value: m, Err: err}
		}
		w.Markers = append(w.Markers, t)
	}

	if err = w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks the window invariants. It must be called before any sensor
// data is loaded.
func (w *Window) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: event name is required", ErrInvalidWindow)
	}
	if strings.ContainsAny(w.Name, `/\`) || w.Name == "." || w.Name == ".." {
		return fmt.Errorf("%w: event name %q cannot be used as a directory name", ErrInvalidWindow, w.Name)
	}
	if !w.Start.Before(w.End) {
		return fmt.Errorf("%w: end time %s must be after start time %s",
			ErrInvalidWindow, FormatTimestamp(w.End), FormatTimestamp(w.Start))
	}
	return nil
}

// Contains reports whether t lies in the closed interval [Start, End].
func (w *Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Duration returns End - Start.
func (w *Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}
