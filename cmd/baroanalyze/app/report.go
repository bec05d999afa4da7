package app

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jung-kurt/gofpdf"

	"github.com/roman-kulish/baro-analysis/internal/analysis"
	"github.com/roman-kulish/baro-analysis/internal/baro"
)

const (
	pageMargin = 10.0 // mm
)

// Report is the PDF summary of one analysed event.
type Report struct {
	Result      *analysis.Result
	Config      analysis.Config
	Images      []string // Rendered artifacts, in page order
	GeneratedAt time.Time
}

// BuildReportPDF renders a summary page followed by one page per image.
func BuildReportPDF(r *Report) ([]byte, error) {
	res := r.Result
	w := res.Window

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetTitle(w.Name, true)
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 8, fmt.Sprintf("Barometer Analysis - %s", w.Name))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	lines := []string{
		fmt.Sprintf("Window: %s - %s UTC (%s)", baro.FormatTimestamp(w.Start), baro.FormatTimestamp(w.End), w.Duration()),
		fmt.Sprintf("Markers: %s", formatMarkers(w.Markers)),
		fmt.Sprintf("Readings: %s", humanize.Comma(int64(res.Readings))),
		fmt.Sprintf("Resample period: %s (%s)", r.Config.Period, formatFrequency(res.Matrix.SampleRate())),
		fmt.Sprintf("Spectral segments: L=%d O=%d NFFT=%d",
			r.Config.Spectrum.SegmentLength, r.Config.Spectrum.Overlap, r.Config.Spectrum.NFFT()),
		fmt.Sprintf("Generated: %s", r.GeneratedAt.UTC().Format(time.RFC3339)),
	}
	for _, l := range lines {
		pdf.Cell(0, 6, l)
		pdf.Ln(5)
	}
	for _, c := range res.Catalog.Conflicts() {
		pdf.Cell(0, 6, fmt.Sprintf("Sensor %d also reported as module %s, kept %s", c.SensorID, c.Seen, c.Kept))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Channel", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Gaps", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Segments", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for i, label := range res.Matrix.Labels {
		segments, status := "-", "skipped"
		if s, ok := res.Spectrogram(label); ok {
			segments, status = fmt.Sprintf("%d", s.Segments()), "analysed"
		}
		pdf.CellFormat(50, 6, label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, humanize.Comma(int64(countNaN(res.Matrix.Columns[i]))), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, segments, "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, status, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	pageW, pageH := pdf.GetPageSize()
	maxW, maxH := pageW-2*pageMargin, pageH-2*pageMargin

	for _, path := range r.Images {
		info := pdf.RegisterImageOptions(path, gofpdf.ImageOptions{ReadDpi: true})
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("adding %s: %w", path, err)
		}

		scale := math.Min(maxW/info.Width(), maxH/info.Height())
		imgW, imgH := info.Width()*scale, info.Height()*scale

		pdf.AddPage()
		pdf.ImageOptions(path, (pageW-imgW)/2, pageMargin, imgW, imgH, false, gofpdf.ImageOptions{ReadDpi: true}, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatMarkers(markers []time.Time) string {
	if len(markers) == 0 {
		return "none"
	}
	var buf bytes.Buffer
	for i, m := range markers {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(baro.FormatTimestamp(m))
	}
	return buf.String()
}

func countNaN(values []float64) int {
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}
