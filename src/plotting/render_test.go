package plotting

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

func TestComposeGrid(t *testing.T) {
	bg := drawing.Color{R: 255, G: 255, B: 255, A: 255}
	panels := []image.Image{
		blank(100, 80),
		blank(100, 80),
		blank(100, 80),
	}
	out := composeGrid(panels, 2, bg)
	b := out.Bounds()
	if b.Dx() != 200 || b.Dy() != 160 {
		t.Errorf("3 panels in 2 columns = %dx%d, want 200x160", b.Dx(), b.Dy())
	}

	// More columns than panels collapses to a single row.
	row := composeGrid(panels, 10, bg)
	if rb := row.Bounds(); rb.Dx() != 300 || rb.Dy() != 80 {
		t.Errorf("single row = %dx%d, want 300x80", rb.Dx(), rb.Dy())
	}

	// Cells track the largest panel.
	mixed := composeGrid([]image.Image{blank(100, 80), blank(140, 60)}, 2, bg)
	if mb := mixed.Bounds(); mb.Dx() != 280 || mb.Dy() != 80 {
		t.Errorf("mixed sizes = %dx%d, want 280x80", mb.Dx(), mb.Dy())
	}

	empty := composeGrid(nil, 3, bg)
	if eb := empty.Bounds(); eb.Dx() != defaultWidth || eb.Dy() != defaultHeight {
		t.Errorf("empty grid = %dx%d, want the default panel", eb.Dx(), eb.Dy())
	}
}

func TestBlank(t *testing.T) {
	img := blank(64, 32)
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("blank bounds = %v", b)
	}
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.png")
	if err := SavePNG(blank(40, 30), path); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("round-tripped bounds = %v", b)
	}
}

func TestPointRadius(t *testing.T) {
	cases := []struct {
		n    int
		want float64
	}{
		{0, 4},
		{-5, 4},
		{4, 6},     // tiny datasets cap at the max
		{100, 5},   // 100/sqrt(100)/2
		{1e6, 1.5}, // huge datasets floor out
	}
	for _, c := range cases {
		if got := pointRadius(c.n); got != c.want {
			t.Errorf("pointRadius(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestDrawCaption(t *testing.T) {
	if DrawCaption(nil, "hello") != nil {
		t.Error("nil image should pass through")
	}
	base := blank(200, 100)
	if DrawCaption(base, "  ") != base {
		t.Error("blank caption should pass through unchanged")
	}
	out := DrawCaption(base, "hint text")
	if out == base {
		t.Error("captioned image should be a copy")
	}
	if out.Bounds() != base.Bounds() {
		t.Errorf("caption changed bounds: %v vs %v", out.Bounds(), base.Bounds())
	}
	// The backing strip near the bottom left must differ from the background.
	bx, by := 10, 95
	if out.At(bx, by) == base.At(bx, by) {
		t.Error("caption strip did not alter pixels")
	}
}

func TestRenderToImageFallback(t *testing.T) {
	th, _ := ThemeByName("blue")
	// A chart with no series cannot render; we should get the blank panel
	// at the requested size rather than an error.
	ch := themedChart(th, "empty", 120, 90)
	img := renderToImage(ch, "test")
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 90 {
		t.Errorf("fallback bounds = %v, want 120x90", b)
	}
}
