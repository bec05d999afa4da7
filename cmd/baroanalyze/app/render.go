package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/roman-kulish/baro-analysis/internal/spectrum"
)

const (
	dpi            = 96.0
	fontSize       = 10.0
	titleFontSize  = 16.0
	tickMarkLength = 5
	pixelsPerLabel = 120.0

	defaultPlotWidth  = 960
	defaultPlotHeight = 480

	// Default border sizes in pixels
	defaultTopBorder    = 50
	defaultLeftBorder   = 90
	defaultBottomBorder = 80
	defaultRightBorder  = 150

	colorBarWidth = 20
	colorBarGap   = 20
	markerDash    = 6

	colorBarLabel = "log10 Pa^2/Hz"

	jpegQuality = 95
)

// BorderConfig defines the sizes of white space around the plot area
type BorderConfig struct {
	Top    int // Space for the title
	Left   int // Space for the frequency scale
	Bottom int // Space for the time scale and information bar
	Right  int // Space for the colour bar
}

// RenderConfig holds all configuration options for spectrogram images
type RenderConfig struct {
	Width      int        // Plot area width in pixels
	Height     int        // Plot area height in pixels
	FontSize   float64    // Font size in points
	ColorTheme ColorTheme // Color scheme for log10 PSD levels

	// Border configuration
	BorderConfig BorderConfig
}

// SpectrogramPlot is everything drawn on one spectrogram image.
type SpectrogramPlot struct {
	Title       string
	Spectrogram *spectrum.Spectrogram
	Markers     []time.Time
	Config      spectrum.Config
}

// SpectrogramRenderer draws spectrograms as annotated raster images: time on
// the x axis, frequency on the y axis with 0 Hz at the bottom.
type SpectrogramRenderer struct {
	config RenderConfig
	font   *truetype.Font
}

// NewSpectrogramRenderer creates a renderer, filling zero config fields with defaults.
func NewSpectrogramRenderer(config RenderConfig) (*SpectrogramRenderer, error) {
	if config.Width == 0 {
		config.Width = defaultPlotWidth
	}
	if config.Height == 0 {
		config.Height = defaultPlotHeight
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.ColorTheme == "" {
		config.ColorTheme = DefaultTheme
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("app.RenderConfig: invalid plot size %dx%d", config.Width, config.Height)
	}

	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &SpectrogramRenderer{config: config, font: parsedFont}, nil
}

// timeExtent returns the instants at the left and right edges of the plot:
// the first and last segment centres, or one segment around the centre when
// there is a single segment.
func timeExtent(plot *SpectrogramPlot) (time.Time, time.Time) {
	s := plot.Spectrogram
	ts := s.Timestamps()
	if len(ts) > 1 {
		return ts[0], ts[len(ts)-1]
	}
	half := time.Duration(float64(plot.Config.SegmentLength) / 2 / s.SampleRate * float64(time.Second))
	return ts[0].Add(-half), ts[0].Add(half)
}

// Render creates an image of the spectrogram with scales, colour bar and markers.
func (r *SpectrogramRenderer) Render(plot *SpectrogramPlot) (*image.RGBA, error) {
	s := plot.Spectrogram
	if s == nil || s.Segments() == 0 || s.Bins() == 0 {
		return nil, fmt.Errorf("rendering %q: empty spectrogram", plot.Title)
	}

	b := r.config.BorderConfig
	fullWidth := r.config.Width + b.Left + b.Right
	fullHeight := r.config.Height + b.Top + b.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	plotArea := image.Rect(b.Left, b.Top, b.Left+r.config.Width, b.Top+r.config.Height)

	levels := s.Log10()
	bounds := LevelBoundsOf(levels)
	colorMap := NewColorMapper(r.config.ColorTheme, bounds)

	r.renderLevels(img, plotArea, levels, colorMap)

	start, end := timeExtent(plot)
	drawFrame(img, plotArea)
	drawMarkers(img, plotArea, plot.Markers, start, end)

	ann, err := newAnnotator(r.font, r.config.FontSize)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	ann.context.SetClip(img.Bounds())
	ann.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func() error
	}{
		{"drawing title", func() error { return ann.drawTitle(img, plot.Title) }},
		{"drawing frequency scale", func() error { return ann.drawFrequencyScale(img, plotArea, s) }},
		{"drawing time scale", func() error { return ann.drawTimeScale(img, plotArea, start, end) }},
		{"drawing colour bar", func() error { return ann.drawColorBar(img, plotArea, colorMap, bounds) }},
		{"drawing info bar", func() error { return ann.drawInfoBar(img, plot, start, end) }},
	}
	for _, op := range ops {
		if err = op.fn(); err != nil {
			return nil, fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return img, nil
}

// renderLevels fills the plot area by bilinear interpolation between segment
// centres (x) and frequency bins (y). Cells touching a NaN level get NoDataColor.
func (r *SpectrogramRenderer) renderLevels(img *image.RGBA, area image.Rectangle, levels [][]float64, cm *ColorMapper) {
	segments, bins := len(levels), len(levels[0])
	w, h := area.Dx(), area.Dy()

	for px := 0; px < w; px++ {
		x := position(px, w, segments)
		x0 := int(x)
		x1 := min(x0+1, segments-1)
		fx := x - float64(x0)

		for py := 0; py < h; py++ {
			// Row 0 of the image is the highest frequency.
			y := position(h-1-py, h, bins)
			y0 := int(y)
			y1 := min(y0+1, bins-1)
			fy := y - float64(y0)

			top := lerp(levels[x0][y1], levels[x1][y1], fx)
			bottom := lerp(levels[x0][y0], levels[x1][y0], fx)
			img.Set(area.Min.X+px, area.Min.Y+py, cm.GetColor(lerp(bottom, top, fy)))
		}
	}
}

// position maps pixel p of n onto the index range [0, count-1].
func position(p, n, count int) float64 {
	if count <= 1 || n <= 1 {
		return 0
	}
	return float64(p) * float64(count-1) / float64(n-1)
}

// lerp interpolates between a and b; -Inf levels (zero power) pass through
// unchanged rather than producing NaN.
func lerp(a, b, f float64) float64 {
	switch {
	case f == 0:
		return a
	case f == 1:
		return b
	case math.IsInf(a, -1) || math.IsInf(b, -1):
		if f < 0.5 {
			return a
		}
		return b
	}
	return a + (b-a)*f
}

func drawFrame(img *image.RGBA, area image.Rectangle) {
	for x := area.Min.X - 1; x <= area.Max.X; x++ {
		img.Set(x, area.Min.Y-1, color.Black)
		img.Set(x, area.Max.Y, color.Black)
	}
	for y := area.Min.Y - 1; y <= area.Max.Y; y++ {
		img.Set(area.Min.X-1, y, color.Black)
		img.Set(area.Max.X, y, color.Black)
	}
}

// drawMarkers draws dashed vertical lines for markers inside [start, end].
func drawMarkers(img *image.RGBA, area image.Rectangle, markers []time.Time, start, end time.Time) {
	span := end.Sub(start)
	if span <= 0 {
		return
	}
	for _, m := range markers {
		if m.Before(start) || m.After(end) {
			continue
		}
		x := area.Min.X + int(float64(m.Sub(start))/float64(span)*float64(area.Dx()-1))
		for y := area.Min.Y; y < area.Max.Y; y++ {
			if (y-area.Min.Y)/markerDash%2 == 0 {
				img.Set(x, y, color.Black)
			}
		}
	}
}

// Internal annotator implementation

type annotator struct {
	font     *truetype.Font
	context  *freetype.Context
	fontFace font.Face
	fontSize float64
}

func newAnnotator(f *truetype.Font, size float64) (*annotator, error) {
	if f == nil {
		return nil, errors.New("font required")
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(f)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		font:     f,
		context:  ctx,
		fontSize: size,
		fontFace: truetype.NewFace(f, &truetype.Options{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) fontHeight() int {
	m := a.fontFace.Metrics()
	return (m.Ascent + m.Descent).Round()
}

func (a *annotator) drawString(s string, x, y int) error {
	_, err := a.context.DrawString(s, freetype.Pt(x, y))
	return err
}

func (a *annotator) drawTitle(img *image.RGBA, title string) error {
	face := truetype.NewFace(a.font, &truetype.Options{Size: titleFontSize, DPI: dpi, Hinting: font.HintingNone})
	defer face.Close()

	a.context.SetFontSize(titleFontSize)
	defer a.context.SetFontSize(a.fontSize)

	width := font.MeasureString(face, title).Round()
	x := (img.Bounds().Dx() - width) / 2
	return a.drawString(title, max(x, 0), face.Metrics().Ascent.Round()+10)
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, area image.Rectangle, s *spectrum.Spectrogram) error {
	fMin, fMax := s.Frequencies[0], s.Frequencies[len(s.Frequencies)-1]
	span := fMax - fMin
	if span <= 0 {
		return nil
	}

	step := niceStep(span, float64(area.Dy())/pixelsPerLabel*2)
	half := a.fontHeight() / 2

	for freq := math.Ceil(fMin/step) * step; freq <= fMax+step*1e-9; freq += step {
		y := area.Max.Y - 1 - int((freq-fMin)/span*float64(area.Dy()-1))

		for x := area.Min.X - tickMarkLength - 1; x < area.Min.X-1; x++ {
			img.Set(x, y, color.Black)
		}

		label := formatFrequency(freq)
		width := font.MeasureString(a.fontFace, label).Round()
		if err := a.drawString(label, area.Min.X-tickMarkLength-4-width, y+half-2); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}

	return a.drawString("Frequency (Hz)", 4, area.Min.Y-8)
}

func (a *annotator) drawTimeScale(img *image.RGBA, area image.Rectangle, start, end time.Time) error {
	span := end.Sub(start)
	if span <= 0 {
		return nil
	}

	step := calculateNiceTimeStep(span)
	layout := "15:04:05"
	if step >= time.Minute {
		layout = "15:04"
	}

	textY := area.Max.Y + tickMarkLength + a.fontHeight() + 2
	for t := start.Truncate(step); !t.After(end); t = t.Add(step) {
		if t.Before(start) {
			continue
		}
		x := area.Min.X + int(float64(t.Sub(start))/float64(span)*float64(area.Dx()-1))

		for y := area.Max.Y + 1; y <= area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := t.UTC().Format(layout)
		width := font.MeasureString(a.fontFace, label).Round()
		if err := a.drawString(label, x-width/2, textY); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}

	label := "Timestamp (UTC)"
	width := font.MeasureString(a.fontFace, label).Round()
	return a.drawString(label, area.Min.X+(area.Dx()-width)/2, textY+a.fontHeight()+4)
}

func (a *annotator) drawColorBar(img *image.RGBA, area image.Rectangle, cm *ColorMapper, bounds LevelBounds) error {
	bar := image.Rect(area.Max.X+colorBarGap, area.Min.Y, area.Max.X+colorBarGap+colorBarWidth, area.Max.Y)

	for y := bar.Min.Y; y < bar.Max.Y; y++ {
		frac := float64(bar.Max.Y-1-y) / float64(bar.Dy()-1)
		c := cm.AtFraction(frac)
		for x := bar.Min.X; x < bar.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
	drawFrame(img, bar)

	half := a.fontHeight() / 2
	levelStep := niceStep(bounds.Max-bounds.Min, 5)
	for level := math.Ceil(bounds.Min/levelStep) * levelStep; level <= bounds.Max; level += levelStep {
		y := bar.Max.Y - 1 - int((level-bounds.Min)/(bounds.Max-bounds.Min)*float64(bar.Dy()-1))
		for x := bar.Max.X + 1; x <= bar.Max.X+tickMarkLength; x++ {
			img.Set(x, y, color.Black)
		}
		if err := a.drawString(fmt.Sprintf("%.1f", level), bar.Max.X+tickMarkLength+3, y+half-2); err != nil {
			return fmt.Errorf("drawing level label: %w", err)
		}
	}

	return a.drawString(colorBarLabel, bar.Min.X-colorBarGap/2, area.Min.Y-8)
}

func (a *annotator) drawInfoBar(img *image.RGBA, plot *SpectrogramPlot, start, end time.Time) error {
	s := plot.Spectrogram
	info := fmt.Sprintf("%s - %s UTC; fs %s; L=%d O=%d NFFT=%d; %d bins x %d segments",
		start.UTC().Format(time.DateTime), end.UTC().Format(time.DateTime),
		formatFrequency(s.SampleRate),
		plot.Config.SegmentLength, plot.Config.Overlap, plot.Config.NFFT(),
		s.Bins(), s.Segments())

	y := img.Bounds().Max.Y - a.fontFace.Metrics().Descent.Round() - 6
	return a.drawString(info, img.Bounds().Min.X+8, y)
}

// Helper functions

// niceStep picks a 1-2-5 step that splits span into about target intervals.
func niceStep(span, target float64) float64 {
	if span <= 0 || target <= 0 {
		return 1
	}
	rough := span / target
	exp := math.Pow(10, math.Floor(math.Log10(rough)))
	for _, m := range []float64{1, 2, 5, 10} {
		if m*exp >= rough {
			return m * exp
		}
	}
	return 10 * exp
}

func formatFrequency(freq float64) string {
	if freq == 0 {
		return "0 Hz"
	}
	v, prefix := humanize.ComputeSI(freq)
	return fmt.Sprintf("%s %sHz", humanize.Ftoa(math.Round(v*100)/100), prefix)
}

func calculateNiceTimeStep(duration time.Duration) time.Duration {
	roughStep := duration / 8 // Aim for about 8 time labels

	niceIntervals := []time.Duration{
		time.Second,
		2 * time.Second,
		5 * time.Second,
		10 * time.Second,
		15 * time.Second,
		30 * time.Second,
		time.Minute,
		2 * time.Minute,
		5 * time.Minute,
		10 * time.Minute,
		15 * time.Minute,
		30 * time.Minute,
		time.Hour,
		2 * time.Hour,
		4 * time.Hour,
		6 * time.Hour,
		12 * time.Hour,
	}

	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return interval
		}
	}

	return 24 * time.Hour
}

// EncodeImage writes img in the given format.
func EncodeImage(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImagePNG:
		return png.Encode(w, img)
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	default:
		return fmt.Errorf("unsupported image format: %s", format)
	}
}

// saveImage encodes img into a new file at path.
func saveImage(path string, img image.Image, format ImageFormat) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return EncodeImage(out, img, format)
}
