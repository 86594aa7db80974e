// Package plotting renders the diagnostic figures: fraction violins,
// variance-explained curves, feature-gene selections, phase portraits and
// embedding scatters. Charts are drawn with go-chart and composed into
// multi-panel PNG images.
//
// Design notes:
//   - Every plot function returns an image.Image; callers decide whether it
//     lands in a window, a file or an HTTP response.
//   - Color themes pair a continuous colormap with a categorical palette
//     and a background, so one name switches a whole figure's look.
//   - Continuous color values are normalized to [0,1] by the kinetics
//     helpers before they reach a colormap.
package plotting

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mazznoer/colorgrad"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Theme bundles a continuous colormap, a categorical palette and a
// background color under one name.
type Theme struct {
	Name       string
	Background drawing.Color

	cmap    colorgrad.Gradient
	keyCmap colorgrad.Gradient
	// tab20 palettes beat gradient sampling for small label counts on
	// light backgrounds.
	useTab20 bool
}

func mustGradient(g colorgrad.Gradient, err error) colorgrad.Gradient {
	if err != nil {
		panic(err)
	}
	return g
}

// Dark-background ramps running dim to bright so high values glow.
var (
	fireGrad = mustGradient(colorgrad.NewGradient().
			HtmlColors("#000000", "#85001b", "#e05000", "#ffce0a", "#ffffff").
			Build())
	darkBlueGrad = mustGradient(colorgrad.NewGradient().
			HtmlColors("#000000", "#3b4cc0", "#a6c8ff").
			Build())
	darkRedGrad = mustGradient(colorgrad.NewGradient().
			HtmlColors("#000000", "#b40426", "#ffb3a6").
			Build())
	darkGreenGrad = mustGradient(colorgrad.NewGradient().
			HtmlColors("#000000", "#1a7d1a", "#b3ffb3").
			Build())
)

var (
	white = drawing.Color{R: 255, G: 255, B: 255, A: 255}
	black = drawing.Color{R: 0, G: 0, B: 0, A: 255}
)

// tab20 is the classic qualitative palette used on light backgrounds.
var tab20 = []string{
	"#1f77b4", "#aec7e8", "#ff7f0e", "#ffbb78", "#2ca02c", "#98df8a",
	"#d62728", "#ff9896", "#9467bd", "#c5b0d5", "#8c564b", "#c49c94",
	"#e377c2", "#f7b6d2", "#7f7f7f", "#c7c7c7", "#bcbd22", "#dbdb8d",
	"#17becf", "#9edae5",
}

var themes = map[string]*Theme{
	"blue":      {Name: "blue", Background: white, cmap: colorgrad.Blues(), useTab20: true},
	"red":       {Name: "red", Background: white, cmap: colorgrad.Reds(), useTab20: true},
	"green":     {Name: "green", Background: white, cmap: colorgrad.Greens(), useTab20: true},
	"inferno":   {Name: "inferno", Background: black, cmap: colorgrad.Inferno(), keyCmap: colorgrad.Spectral()},
	"fire":      {Name: "fire", Background: black, cmap: fireGrad, keyCmap: colorgrad.Rainbow()},
	"viridis":   {Name: "viridis", Background: black, cmap: colorgrad.Viridis(), keyCmap: colorgrad.Spectral()},
	"darkblue":  {Name: "darkblue", Background: black, cmap: darkBlueGrad, keyCmap: colorgrad.Rainbow()},
	"darkred":   {Name: "darkred", Background: black, cmap: darkRedGrad, keyCmap: colorgrad.Rainbow()},
	"darkgreen": {Name: "darkgreen", Background: black, cmap: darkGreenGrad, keyCmap: colorgrad.Rainbow()},
}

// ThemeNames lists known themes in sorted order.
func ThemeNames() []string {
	out := make([]string, 0, len(themes))
	for k := range themes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ThemeByName resolves a theme; "" picks the light default.
func ThemeByName(name string) (*Theme, error) {
	if name == "" {
		name = "blue"
	}
	t, ok := themes[name]
	if !ok {
		return nil, fmt.Errorf("unknown theme %q (have %v)", name, ThemeNames())
	}
	return t, nil
}

// MapValue maps a normalized value in [0,1] through the continuous
// colormap at the given opacity. NaN renders as neutral gray so missing
// values stay visible without claiming a colormap slot.
func (t *Theme) MapValue(v float64, alpha uint8) drawing.Color {
	if math.IsNaN(v) {
		return t.missingColor(alpha)
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	r, g, b := t.cmap.At(v).RGB255()
	return drawing.Color{R: r, G: g, B: b, A: alpha}
}

func (t *Theme) missingColor(alpha uint8) drawing.Color {
	if t.IsDark() {
		return drawing.Color{R: 85, G: 85, B: 85, A: alpha}
	}
	return drawing.Color{R: 211, G: 211, B: 211, A: alpha}
}

// ColorKey returns n categorical colors: the tab20 table while it lasts on
// light themes, otherwise even samples of the key colormap.
func (t *Theme) ColorKey(n int) []drawing.Color {
	if n <= 0 {
		return nil
	}
	out := make([]drawing.Color, n)
	if t.useTab20 && n <= len(tab20) {
		for i := 0; i < n; i++ {
			out[i] = hexColor(tab20[i])
		}
		return out
	}
	key := t.keyCmap
	if t.useTab20 {
		key = colorgrad.Rainbow()
	}
	for i := 0; i < n; i++ {
		pos := 0.5
		if n > 1 {
			pos = float64(i) / float64(n-1)
		}
		r, g, b := key.At(pos).RGB255()
		out[i] = drawing.Color{R: r, G: g, B: b, A: 255}
	}
	return out
}

// IsDark reports whether the background calls for light foreground text.
func (t *Theme) IsDark() bool {
	mean := (int(t.Background.R) + int(t.Background.G) + int(t.Background.B)) / 3
	return mean <= 126
}

// FontColor picks black or white against the theme background.
func (t *Theme) FontColor() drawing.Color {
	if t.IsDark() {
		return white
	}
	return black
}

// hexColor parses "#rrggbb" into an opaque color.
func hexColor(s string) drawing.Color {
	c := drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
	c.A = 255
	return c
}
