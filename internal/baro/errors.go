package baro

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWindow is returned when an analysis window does not satisfy start < end.
	ErrInvalidWindow = errors.New("invalid analysis window")

	// ErrParse marks malformed timestamps and values in CLI arguments, event logs or data rows.
	ErrParse = errors.New("parse error")
)

// ParseError describes a value that could not be parsed.
type ParseError struct {
	Source string // File name or "cli"
	Line   int    // 1-based line number, 0 when not applicable
	Field  string // Column or flag name
	Value  string // Offending text
	Err    error  // Underlying parser error
}

func (e *ParseError) Error() string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Source, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: parsing %s %q: %s", loc, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: parsing %s %q", loc, e.Field, e.Value)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

// MissingColumnError is returned when a required input column is absent.
type MissingColumnError struct {
	Source string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: required column %q is missing", e.Source, e.Column)
}
