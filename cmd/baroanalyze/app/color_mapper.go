package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ColorTheme names a palette for log10 PSD values.
type ColorTheme string

const (
	ViridisTheme   ColorTheme = "viridis"   // Perceptually uniform purple to yellow
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	DefaultTheme = ViridisTheme

	DefaultColorMapSize = 256 // Default number of colors in the map
)

// NoDataColor paints cells whose level is NaN.
var NoDataColor color.Color = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}

var viridisStops = []string{
	"#440154", "#482878", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

var colorThemes = map[ColorTheme]func(float64) color.Color{
	ViridisTheme: gradient(viridisStops),

	ClassicTheme: func(v float64) color.Color {
		return colorful.Hsv(240-(v*240), 0.9+(v*0.1), math.Pow(v, 0.7)).Clamped()
	},

	GrayscaleTheme: func(v float64) color.Color {
		g := math.Pow(v, 0.7)
		return colorful.Color{R: g, G: g, B: g}.Clamped()
	},

	JungleTheme: func(v float64) color.Color {
		return colorful.Hsv(120-(v*60), 1.0, 0.3+(math.Pow(v, 0.6)*0.7)).Clamped()
	},

	ThermalTheme: func(v float64) color.Color {
		switch {
		case v < 0.33:
			return colorful.Color{R: v * 3}.Clamped()
		case v < 0.66:
			return colorful.Color{R: 1, G: (v - 0.33) * 3}.Clamped()
		default:
			return colorful.Color{R: 1, G: 1, B: (v - 0.66) * 3}.Clamped()
		}
	},

	MarineTheme: func(v float64) color.Color {
		return colorful.Hsv(240-(v*60), 1.0-(v*0.8), 0.3+(math.Pow(v, 0.6)*0.7)).Clamped()
	},
}

// ColorThemes lists the available theme names.
func ColorThemes() []ColorTheme {
	return []ColorTheme{ViridisTheme, ClassicTheme, GrayscaleTheme, JungleTheme, ThermalTheme, MarineTheme}
}

// gradient blends between evenly spaced colour stops in CIE L*a*b*.
func gradient(stops []string) func(float64) color.Color {
	colors := make([]colorful.Color, len(stops))
	for i, s := range stops {
		colors[i], _ = colorful.Hex(s)
	}

	return func(v float64) color.Color {
		pos := v * float64(len(colors)-1)
		i := int(pos)
		if i >= len(colors)-1 {
			return colors[len(colors)-1]
		}
		if f := pos - float64(i); f > 0 {
			return colors[i].BlendLab(colors[i+1], f).Clamped()
		}
		return colors[i]
	}
}

// ColorMapper maps levels to colours through a pre-computed table.
type ColorMapper struct {
	colorMap      []color.Color // Pre-computed colors
	theme         func(float64) color.Color
	themeName     ColorTheme
	size          int     // Cache size
	levelPerIndex float64 // Level range per index step
	boundsMin     float64 // Cached bounds.Min
	boundsRange   float64 // Cached bounds.Max - bounds.Min
}

// NewColorMapper creates a mapper with the default table size.
func NewColorMapper(theme ColorTheme, bounds LevelBounds) *ColorMapper {
	return NewColorMapperWithSize(theme, bounds, DefaultColorMapSize)
}

// NewColorMapperWithSize creates a mapper with size pre-computed colours.
// Unknown themes fall back to DefaultTheme.
func NewColorMapperWithSize(theme ColorTheme, bounds LevelBounds, size int) *ColorMapper {
	if size <= 1 {
		size = DefaultColorMapSize
	}
	fn, ok := colorThemes[theme]
	if !ok {
		theme, fn = DefaultTheme, colorThemes[DefaultTheme]
	}

	cm := &ColorMapper{
		colorMap:  make([]color.Color, size),
		theme:     fn,
		themeName: theme,
		size:      size,
	}
	for i := 0; i < cm.size; i++ {
		cm.colorMap[i] = cm.theme(float64(i) / float64(cm.size-1))
	}
	cm.UpdateBounds(bounds)
	return cm
}

// UpdateBounds changes the level range mapped onto the palette.
func (cm *ColorMapper) UpdateBounds(bounds LevelBounds) {
	cm.boundsMin = bounds.Min
	cm.boundsRange = bounds.Max - bounds.Min
	cm.levelPerIndex = cm.boundsRange / float64(cm.size-1)
}

// GetColor returns the colour of level. Levels outside the bounds clamp to
// the ends of the palette; NaN maps to NoDataColor.
func (cm *ColorMapper) GetColor(level float64) color.Color {
	if math.IsNaN(level) {
		return NoDataColor
	}
	if cm.levelPerIndex <= 0 {
		return cm.colorMap[cm.size/2]
	}

	if level <= cm.boundsMin {
		return cm.colorMap[0]
	}
	if level >= cm.boundsMin+cm.boundsRange {
		return cm.colorMap[cm.size-1]
	}
	index := int((level - cm.boundsMin) / cm.levelPerIndex)
	return cm.colorMap[min(index, cm.size-1)]
}

// AtFraction returns the palette colour at v in [0, 1].
func (cm *ColorMapper) AtFraction(v float64) color.Color {
	index := int(math.Round(v * float64(cm.size-1)))
	return cm.colorMap[max(0, min(cm.size-1, index))]
}

// ThemeName returns the current color theme name
func (cm *ColorMapper) ThemeName() ColorTheme {
	return cm.themeName
}

// Size returns the color map size
func (cm *ColorMapper) Size() int {
	return cm.size
}
