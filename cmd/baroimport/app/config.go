package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultBatchSize = 500

// Config holds the import settings.
type Config struct {
	DatabasePath string
	Logs         []string // CSV sensor logs, imported in the given order
	BatchSize    int      // Readings per insert transaction
	List         bool     // Only list the imports already in the archive
	MetricsPath  string
	LogLevel     slog.Level
}

func NewConfig() *Config {
	return &Config{
		BatchSize: defaultBatchSize,
		LogLevel:  slog.LevelInfo,
	}
}

func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("app.Config: database path is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("app.Config: batch size must be positive: %d", c.BatchSize)
	}
	if !c.List && len(c.Logs) == 0 {
		return errors.New("app.Config: no sensor logs to import")
	}
	return nil
}

// FileConfig is the YAML representation of Config.
type FileConfig struct {
	Settings struct {
		LogLevel string `yaml:"logLevel"`
	} `yaml:"settings"`
	Storage struct {
		Database string `yaml:"database"`
	} `yaml:"storage"`
	Import struct {
		BatchSize int    `yaml:"batchSize"`
		Metrics   string `yaml:"metrics"`
	} `yaml:"import"`
}

// LoadConfigFile reads a YAML configuration file. Unknown fields are rejected.
func LoadConfigFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening configuration file: %w", err)
	}
	defer f.Close()

	var fc FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding configuration file: %w", err)
	}
	return &fc, nil
}

func (fc *FileConfig) apply(c *Config) error {
	if fc.Settings.LogLevel != "" {
		if err := c.LogLevel.UnmarshalText([]byte(fc.Settings.LogLevel)); err != nil {
			return fmt.Errorf("app.FileConfig: invalid log level: %s", fc.Settings.LogLevel)
		}
	}
	if fc.Storage.Database != "" {
		c.DatabasePath = fc.Storage.Database
	}
	if fc.Import.BatchSize != 0 {
		c.BatchSize = fc.Import.BatchSize
	}
	if fc.Import.Metrics != "" {
		c.MetricsPath = fc.Import.Metrics
	}
	return nil
}

// NewConfigFromCLI parses os.Args.
func NewConfigFromCLI() (*Config, error) {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s -db <archive> [flags] <sensor log>...\n", fs.Name())
		fs.PrintDefaults()
	}
	return ParseArgs(fs, os.Args[1:])
}

// ParseArgs builds a Config from args. Flags override the YAML file given by -c.
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	var (
		configPath, dbPath, metricsPath, logLevel string
		batchSize                                 int
		list                                      bool
	)

	fs.StringVar(&configPath, "c", "", "Path to the YAML configuration file")
	fs.StringVar(&dbPath, "db", "", "Path to the SQLite archive, created if missing")
	fs.IntVar(&batchSize, "batch", defaultBatchSize, "Readings stored per transaction")
	fs.BoolVar(&list, "list", false, "List the imports in the archive and exit")
	fs.StringVar(&metricsPath, "metrics", "", "Write Prometheus metrics to this textfile")
	fs.StringVar(&logLevel, "log-level", "info", "Log level. [debug, info, warn, error]")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	c := NewConfig()
	if configPath != "" {
		fc, err := LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err = fc.apply(c); err != nil {
			return nil, err
		}
	}

	if set["db"] {
		c.DatabasePath = dbPath
	}
	if set["batch"] {
		c.BatchSize = batchSize
	}
	if set["metrics"] {
		c.MetricsPath = metricsPath
	}
	if set["log-level"] {
		if err := c.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
			return nil, fmt.Errorf("invalid log level: %s", logLevel)
		}
	}
	c.List = list
	c.Logs = fs.Args()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
