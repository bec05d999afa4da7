package app

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("baroimport", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseArgs(t *testing.T) {
	c, err := ParseArgs(newFlagSet(), []string{"-db", "archive.db", "-batch", "50", "a.csv", "b.csv"})
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if c.DatabasePath != "archive.db" || c.BatchSize != 50 {
		t.Errorf("config = %+v", c)
	}
	if !slices.Equal(c.Logs, []string{"a.csv", "b.csv"}) {
		t.Errorf("logs = %v", c.Logs)
	}
}

func TestParseArgsFileConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "import.yaml")
	content := `settings:
  logLevel: debug
storage:
  database: from-file.db
import:
  batchSize: 1000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	c, err := ParseArgs(newFlagSet(), []string{"-c", path, "-batch", "10", "a.csv"})
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if c.DatabasePath != "from-file.db" {
		t.Errorf("database = %q, want from-file.db", c.DatabasePath)
	}
	if c.BatchSize != 10 {
		t.Errorf("batch size = %d, want the flag value 10", c.BatchSize)
	}
	if c.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %s, want DEBUG", c.LogLevel)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no database", args: []string{"a.csv"}},
		{name: "no logs", args: []string{"-db", "archive.db"}},
		{name: "zero batch", args: []string{"-db", "archive.db", "-batch", "0", "a.csv"}},
		{name: "bad log level", args: []string{"-db", "archive.db", "-log-level", "loud", "a.csv"}},
		{name: "missing config file", args: []string{"-c", "nope.yaml", "-db", "archive.db", "a.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseArgs(newFlagSet(), tt.args); err == nil {
				t.Errorf("ParseArgs(%v) error = nil", tt.args)
			}
		})
	}
}

func TestParseArgsList(t *testing.T) {
	c, err := ParseArgs(newFlagSet(), []string{"-db", "archive.db", "-list"})
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if !c.List {
		t.Error("List = false")
	}
}
