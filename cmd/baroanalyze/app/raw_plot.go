package app

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/roman-kulish/baro-analysis/internal/align"
)

const (
	rawPlotWidth       = 12 * vg.Inch
	rawPanelHeight     = 1.6 * vg.Inch
	rawPlotMinHeight   = 6 * vg.Inch
	rawPlotHeaderSpace = 1.5 * vg.Inch
	rawPlotDPI         = 100
)

// ErrNoChannels is returned when there is nothing to plot.
var ErrNoChannels = errors.New("no channels to plot")

// RawPlot is the multi-panel pressure plot of one event.
type RawPlot struct {
	Title   string
	Matrix  *align.Matrix
	Markers []time.Time

	// Start and End set the shared x range; the matrix extent is used when
	// they are zero.
	Start, End time.Time
}

// panels builds one plot per channel sharing the window as x range.
func (rp *RawPlot) panels() ([][]*plot.Plot, error) {
	m := rp.Matrix
	if m == nil || m.Width() == 0 || m.Rows() == 0 {
		return nil, ErrNoChannels
	}

	xMin, xMax := unixSeconds(m.Start()), unixSeconds(m.End())
	if !rp.Start.IsZero() && rp.Start.Before(rp.End) {
		xMin, xMax = unixSeconds(rp.Start), unixSeconds(rp.End)
	}

	rows := make([][]*plot.Plot, m.Width())
	for i, label := range m.Labels {
		p := plot.New()
		p.X.Min, p.X.Max = xMin, xMax
		p.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
		p.Legend.Left = true
		p.Legend.Top = false
		p.Legend.TextStyle.Font.Size = vg.Points(6)

		lineStyle := draw.LineStyle{Color: plotutil.Color(i), Width: vg.Points(1)}
		runs := finiteRuns(m.Timestamps, m.Columns[i])
		for j, run := range runs {
			line, err := plotter.NewLine(run)
			if err != nil {
				return nil, fmt.Errorf("plotting %s: %w", label, err)
			}
			line.LineStyle = lineStyle
			p.Add(line)
			if j == 0 {
				p.Legend.Add(label, line)
			}
		}

		yMin, yMax := valueRange(m.Columns[i])
		p.Y.Min, p.Y.Max = yMin, yMax
		p.Y.Tick.Marker = plainTicks{}

		for _, mk := range rp.Markers {
			x := unixSeconds(mk)
			if x < xMin || x > xMax {
				continue
			}
			line, err := plotter.NewLine(plotter.XYs{{X: x, Y: yMin}, {X: x, Y: yMax}})
			if err != nil {
				return nil, fmt.Errorf("plotting marker: %w", err)
			}
			line.LineStyle = draw.LineStyle{
				Color:  color.Black,
				Width:  vg.Points(1),
				Dashes: []vg.Length{vg.Points(4), vg.Points(3)},
			}
			p.Add(line)
		}

		rows[i] = []*plot.Plot{p}
	}

	top := rows[0][0]
	top.Title.Text = rp.Title + " - Raw Barometer Data"
	top.Title.TextStyle.Font.Size = vg.Points(22)

	bottom := rows[len(rows)-1][0]
	bottom.X.Label.Text = "Timestamp (UTC)"
	bottom.X.Label.TextStyle.Font.Size = vg.Points(18)
	bottom.Y.Label.Text = "Pressure (hPa)"
	bottom.Y.Label.TextStyle.Font.Size = vg.Points(18)

	return rows, nil
}

// WriteTo renders the plot as PNG.
func (rp *RawPlot) WriteTo(w io.Writer) (int64, error) {
	rows, err := rp.panels()
	if err != nil {
		return 0, err
	}

	height := max(rawPlotMinHeight, rawPanelHeight*vg.Length(len(rows))+rawPlotHeaderSpace)
	img := vgimg.NewWith(vgimg.UseWH(rawPlotWidth, height), vgimg.UseDPI(rawPlotDPI))
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      len(rows),
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter * 2,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 4,
	}

	canvases := plot.Align(rows, tiles, dc)
	for i := range rows {
		rows[i][0].Draw(canvases[i][0])
	}

	return vgimg.PngCanvas{Canvas: img}.WriteTo(w)
}

// Save writes the PNG to path. Nothing is written when rendering fails.
func (rp *RawPlot) Save(path string) error {
	var buf bytes.Buffer
	if _, err := rp.WriteTo(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// finiteRuns splits a column at NaN cells so gaps show as breaks in the line.
func finiteRuns(ts []time.Time, values []float64) []plotter.XYs {
	var runs []plotter.XYs
	var cur plotter.XYs
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if len(cur) > 0 {
				runs = append(runs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: unixSeconds(ts[i]), Y: v})
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

// valueRange returns the finite range of values padded by 5%, or a unit
// range when the column has no values.
func valueRange(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	switch {
	case math.IsInf(lo, 1):
		return 0, 1
	case lo == hi:
		return lo - 0.5, hi + 0.5
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// plainTicks labels pressure values without an offset or exponent.
type plainTicks struct{}

func (plainTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = fmt.Sprintf("%.2f", ticks[i].Value)
		}
	}
	return ticks
}
