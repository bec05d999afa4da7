package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/baro-analysis/internal/analysis"
	"github.com/roman-kulish/baro-analysis/internal/baro"
	"github.com/roman-kulish/baro-analysis/internal/spectrum"
)

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"

	defaultStartTime = "1970-01-01-00-00-00"
	defaultOutputDir = "output"
)

type ImageFormat string

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

// Config is the resolved configuration of one baroanalyze invocation.
type Config struct {
	DataPath   string
	EventsPath string

	// Window is set for single event runs; event log runs build one window
	// per row instead.
	Window *baro.Window

	OutputDir   string
	Format      ImageFormat
	Theme       ColorTheme
	ShowPlots   bool
	PDF         bool
	MetricsPath string
	KeepGoing   bool
	LogLevel    slog.Level

	Analysis analysis.Config
}

func NewConfig() *Config {
	return &Config{
		OutputDir: defaultOutputDir,
		Format:    ImagePNG,
		Theme:     DefaultTheme,
		LogLevel:  slog.LevelInfo,
		Analysis:  analysis.DefaultConfig(),
	}
}

// Validate checks the fields that do not depend on the data source.
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return errors.New("app.Config: data path is required")
	}
	if c.Window == nil && c.EventsPath == "" {
		return errors.New("app.Config: event name or event log is required")
	}
	if c.Window != nil && c.EventsPath != "" {
		return errors.New("app.Config: event name and event log are mutually exclusive")
	}
	if c.Window != nil {
		if err := c.Window.Validate(); err != nil {
			return fmt.Errorf("app.Config: %w", err)
		}
	}
	if c.OutputDir == "" {
		return errors.New("app.Config: output directory is required")
	}
	if _, ok := validImageFormats[c.Format]; !ok {
		return fmt.Errorf("app.Config: invalid image format: %s", c.Format)
	}
	if _, ok := colorThemes[c.Theme]; !ok {
		return fmt.Errorf("app.Config: invalid color theme: %s", c.Theme)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("app.Config: %w", err)
	}
	return nil
}

// FileConfig is the optional YAML configuration file.
type FileConfig struct {
	Settings Settings       `yaml:"settings"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Output   OutputConfig   `yaml:"output"`
}

type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// AnalysisConfig selects a spectral preset and optionally overrides its fields.
type AnalysisConfig struct {
	Period        TimeDuration `yaml:"period"`
	Preset        string       `yaml:"preset"`
	SegmentLength *int         `yaml:"segmentLength"`
	Overlap       *int         `yaml:"overlap"`
	FFTLength     *int         `yaml:"fftLength"`
}

type OutputConfig struct {
	Directory string `yaml:"directory"`
	Format    string `yaml:"format"`
	Theme     string `yaml:"theme"`
	PDF       bool   `yaml:"pdf"`
	Metrics   string `yaml:"metrics"`
	KeepGoing bool   `yaml:"keepGoing"`
}

// TimeDuration is a time.Duration written as "50ms" in YAML.
type TimeDuration time.Duration

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var fc FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &fc, nil
}

// apply copies the file settings onto c. Preset fields are resolved first and
// explicit segment overrides win over the preset.
func (fc *FileConfig) apply(c *Config) error {
	if fc.Settings.LogLevel != "" {
		if err := c.LogLevel.UnmarshalText([]byte(fc.Settings.LogLevel)); err != nil {
			return fmt.Errorf("app.Settings: %w", err)
		}
	}

	if fc.Analysis.Period != 0 {
		c.Analysis.Period = time.Duration(fc.Analysis.Period)
	}
	if fc.Analysis.Preset != "" {
		sc, err := spectrum.ConfigForPreset(spectrum.Preset(fc.Analysis.Preset))
		if err != nil {
			return fmt.Errorf("app.AnalysisConfig: %w", err)
		}
		c.Analysis.Spectrum = sc
	}
	fc.applySpectrumOverrides(&c.Analysis.Spectrum)

	if fc.Output.Directory != "" {
		c.OutputDir = fc.Output.Directory
	}
	if fc.Output.Format != "" {
		c.Format = ImageFormat(strings.ToLower(fc.Output.Format))
	}
	if fc.Output.Theme != "" {
		c.Theme = ColorTheme(strings.ToLower(fc.Output.Theme))
	}
	c.PDF = c.PDF || fc.Output.PDF
	c.KeepGoing = c.KeepGoing || fc.Output.KeepGoing
	if fc.Output.Metrics != "" {
		c.MetricsPath = fc.Output.Metrics
	}
	return nil
}

func (fc *FileConfig) applySpectrumOverrides(sc *spectrum.Config) {
	if fc.Analysis.SegmentLength != nil {
		sc.SegmentLength = *fc.Analysis.SegmentLength
	}
	if fc.Analysis.Overlap != nil {
		sc.Overlap = *fc.Analysis.Overlap
	}
	if fc.Analysis.FFTLength != nil {
		sc.FFTLength = *fc.Analysis.FFTLength
	}
}

// markerList collects repeated -l/-line flags.
type markerList []string

func (m *markerList) String() string {
	return strings.Join(*m, ",")
}

func (m *markerList) Set(v string) error {
	*m = append(*m, v)
	return nil
}

// NewConfigFromCLI parses os.Args. On error the usage is printed.
func NewConfigFromCLI() (*Config, error) {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	c, err := ParseArgs(fs, os.Args[1:], time.Now().UTC())
	if err != nil {
		fs.SetOutput(os.Stderr)
		fs.Usage()
		return nil, err
	}
	return c, nil
}

// ParseArgs parses baroanalyze arguments: [flags] <data> [name]. now is the
// default end time. Settings from the -c file apply first and flags given on
// the command line override them.
func ParseArgs(fs *flag.FlagSet, args []string, now time.Time) (*Config, error) {
	c := NewConfig()

	var (
		configPath, name, startTime, endTime string
		imageFormat, theme, preset, logLevel string
		outputDir, metricsPath, eventsPath   string
		showPlots, pdf, keepGoing            bool
		markers                              markerList
	)

	fs.SetOutput(io.Discard)
	fs.StringVar(&configPath, "c", "", "Path to the YAML configuration file")
	fs.StringVar(&name, "n", "", "Name of the event being analysed")
	fs.StringVar(&name, "name", "", "Name of the event being analysed")
	fs.StringVar(&startTime, "s", defaultStartTime, "Window start time (YYYY-MM-DD-HH-MM-SS, UTC)")
	fs.StringVar(&startTime, "start-time", defaultStartTime, "Window start time (YYYY-MM-DD-HH-MM-SS, UTC)")
	fs.StringVar(&endTime, "e", baro.FormatTimestamp(now), "Window end time (YYYY-MM-DD-HH-MM-SS, UTC)")
	fs.StringVar(&endTime, "end-time", baro.FormatTimestamp(now), "Window end time (YYYY-MM-DD-HH-MM-SS, UTC)")
	fs.Var(&markers, "l", "Marker timestamp drawn as a vertical line, repeatable")
	fs.Var(&markers, "line", "Marker timestamp drawn as a vertical line, repeatable")
	fs.StringVar(&eventsPath, "events", "", "Path to an event log CSV (name,markers,start,end)")
	fs.BoolVar(&showPlots, "p", false, "Open the rendered plots in the system viewer")
	fs.BoolVar(&showPlots, "show-plots", false, "Open the rendered plots in the system viewer")
	fs.StringVar(&outputDir, "o", defaultOutputDir, "Output root directory")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Spectrogram image format. [png, jpeg]")
	fs.StringVar(&preset, "preset", string(spectrum.PresetShort), "Spectral preset. [short, long]")
	fs.StringVar(&theme, "theme", string(DefaultTheme), "Spectrogram color theme")
	fs.BoolVar(&pdf, "pdf", false, "Write a PDF report per event")
	fs.StringVar(&metricsPath, "metrics", "", "Write run metrics to this Prometheus textfile")
	fs.BoolVar(&keepGoing, "keep-going", false, "Continue with the next event when one fails")
	fs.StringVar(&logLevel, "log-level", "info", "Log level. [debug, info, warn, error]")
	positional, err := parseInterleaved(fs, args)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	if configPath != "" {
		var fc *FileConfig
		fc, err = LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading configuration file: %w", err)
		}
		if err = fc.apply(c); err != nil {
			return nil, err
		}
		if set["preset"] {
			sc, err := spectrum.ConfigForPreset(spectrum.Preset(preset))
			if err != nil {
				return nil, err
			}
			c.Analysis.Spectrum = sc
			fc.applySpectrumOverrides(&c.Analysis.Spectrum)
		}
	} else {
		sc, err := spectrum.ConfigForPreset(spectrum.Preset(preset))
		if err != nil {
			return nil, err
		}
		c.Analysis.Spectrum = sc
	}

	if set["o"] {
		c.OutputDir = outputDir
	}
	if set["f"] {
		c.Format = ImageFormat(strings.ToLower(imageFormat))
	}
	if set["theme"] {
		c.Theme = ColorTheme(strings.ToLower(theme))
	}
	if set["log-level"] {
		if err := c.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
			return nil, err
		}
	}
	if set["metrics"] {
		c.MetricsPath = metricsPath
	}
	c.ShowPlots = showPlots
	c.PDF = c.PDF || pdf
	c.KeepGoing = c.KeepGoing || keepGoing

	if len(positional) == 0 {
		return nil, errors.New("data path is required")
	}
	if len(positional) > 2 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(positional[2:], " "))
	}
	c.DataPath = positional[0]
	if len(positional) == 2 {
		if name != "" && name != positional[1] {
			return nil, errors.New("event name given both as argument and flag")
		}
		name = positional[1]
	}

	c.EventsPath = eventsPath
	if eventsPath != "" {
		if name != "" {
			return nil, errors.New("event name and -events are mutually exclusive")
		}
		for _, f := range []string{"s", "start-time", "e", "end-time", "l", "line"} {
			if set[f] {
				return nil, fmt.Errorf("flag -%s cannot be combined with -events", f)
			}
		}
	} else if name != "" {
		var w *baro.Window
		if w, err = baro.NewWindow(name, startTime, endTime, markers); err != nil {
			return nil, err
		}
		c.Window = w
	}

	if err = c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// parseInterleaved lets flags follow positional arguments.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}
