package plotting

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Default single-panel size; grids use smaller square panels.
const (
	defaultWidth  = 800
	defaultHeight = 480
	panelSize     = 340
)

// renderToImage rasterizes a chart, falling back to a blank panel instead
// of failing the whole figure when go-chart rejects an edge case.
func renderToImage(ch chart.Chart, what string) image.Image {
	if ch.Width == 0 {
		ch.Width = defaultWidth
	}
	if ch.Height == 0 {
		ch.Height = defaultHeight
	}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		fmt.Printf("[plot] %s render error: %v; using blank panel\n", what, err)
		return blank(ch.Width, ch.Height)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		fmt.Printf("[plot] %s decode error: %v; using blank panel\n", what, err)
		return blank(ch.Width, ch.Height)
	}
	return img
}

// themedChart builds the chart scaffold every figure starts from: themed
// background, canvas and axis colors, uniform padding.
func themedChart(t *Theme, title string, w, h int) chart.Chart {
	fc := t.FontColor()
	return chart.Chart{
		Title:      title,
		TitleStyle: chart.Style{FontColor: fc},
		Background: chart.Style{FillColor: t.Background, Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 28}},
		Canvas:     chart.Style{FillColor: t.Background},
		XAxis: chart.XAxis{
			Style:     chart.Style{FontColor: fc, StrokeColor: fc},
			NameStyle: chart.Style{FontColor: fc},
		},
		YAxis: chart.YAxis{
			Style:     chart.Style{FontColor: fc, StrokeColor: fc},
			NameStyle: chart.Style{FontColor: fc},
		},
		Width:  w,
		Height: h,
	}
}

func blank(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	// subtle background
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 18, G: 18, B: 18, A: 255})
		}
	}
	return img
}

// composeGrid lays panels out left to right, top to bottom, ncols per row,
// on the given background. Panels of unequal size are aligned to the top
// left of their cell.
func composeGrid(panels []image.Image, ncols int, bg drawing.Color) image.Image {
	if len(panels) == 0 {
		return blank(defaultWidth, defaultHeight)
	}
	if ncols <= 0 || ncols > len(panels) {
		ncols = len(panels)
	}
	nrows := (len(panels) + ncols - 1) / ncols
	cellW, cellH := 0, 0
	for _, p := range panels {
		b := p.Bounds()
		if b.Dx() > cellW {
			cellW = b.Dx()
		}
		if b.Dy() > cellH {
			cellH = b.Dy()
		}
	}
	out := image.NewRGBA(image.Rect(0, 0, ncols*cellW, nrows*cellH))
	fill := image.NewUniform(color.RGBA{R: bg.R, G: bg.G, B: bg.B, A: 255})
	draw.Draw(out, out.Bounds(), fill, image.Point{}, draw.Src)
	for i, p := range panels {
		row, col := i/ncols, i%ncols
		origin := image.Pt(col*cellW, row*cellH)
		rect := image.Rectangle{Min: origin, Max: origin.Add(p.Bounds().Size())}
		draw.Draw(out, rect, p, p.Bounds().Min, draw.Over)
	}
	return out
}

// DrawCaption draws a small caption near the bottom-left of an image, used
// for interpretation hints under figures.
func DrawCaption(img image.Image, text string) image.Image {
	if img == nil || strings.TrimSpace(text) == "" {
		return img
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	pad := 6
	face := basicfont.Face7x13
	textCol := image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	shadowCol := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0, A: 180})
	dr := &font.Drawer{Dst: rgba, Src: textCol, Face: face}
	tw := dr.MeasureString(text).Ceil()
	x := b.Min.X + 8
	y := b.Max.Y - 6
	// Dark backing strip so the caption reads on any plot background.
	bg := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0, A: 200})
	rect := image.Rect(x-pad, y-face.Metrics().Ascent.Ceil()-pad, x+tw+pad, y+pad/2)
	draw.Draw(rgba, rect, bg, image.Point{}, draw.Over)
	drShadow := &font.Drawer{Dst: rgba, Src: shadowCol, Face: face, Dot: fixed.Point26_6{X: fixed.I(x + 1), Y: fixed.I(y + 1)}}
	drShadow.DrawString(text)
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(text)
	return rgba
}

// SavePNG writes an image to disk.
func SavePNG(img image.Image, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}

// pointRadius scales dot size down as cell count grows, within sane bounds.
func pointRadius(n int) float64 {
	if n <= 0 {
		return 4
	}
	r := 100 / math.Sqrt(float64(n)) / 2
	if r < 1.5 {
		r = 1.5
	}
	if r > 6 {
		r = 6
	}
	return r
}
