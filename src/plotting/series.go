package plotting

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// seriesLabel is a text annotation anchored at data coordinates, used for
// on-data legends.
type seriesLabel struct {
	text string
	x, y float64
	col  drawing.Color
}

// pointSeries renders one dot per observation. Unlike the stock continuous
// series it supports a color per point, which embedding scatters need.
type pointSeries struct {
	name   string
	xs, ys []float64
	// colors overrides color per point when non-nil.
	colors []drawing.Color
	color  drawing.Color
	radius float64
	labels []seriesLabel
}

func (ps pointSeries) GetName() string { return ps.name }

func (ps pointSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }

func (ps pointSeries) GetStyle() chart.Style {
	return chart.Style{
		StrokeWidth: 4,
		StrokeColor: ps.color,
		DotWidth:    ps.radius,
		DotColor:    ps.color,
	}
}

func (ps pointSeries) Validate() error {
	if len(ps.xs) != len(ps.ys) {
		return fmt.Errorf("point series %q: %d x values, %d y values", ps.name, len(ps.xs), len(ps.ys))
	}
	if ps.colors != nil && len(ps.colors) != len(ps.xs) {
		return fmt.Errorf("point series %q: %d colors for %d points", ps.name, len(ps.colors), len(ps.xs))
	}
	return nil
}

func (ps pointSeries) Render(r chart.Renderer, canvasBox chart.Box, xrange, yrange chart.Range, defaults chart.Style) {
	style := ps.GetStyle().InheritFrom(defaults)
	radius := ps.radius
	if radius <= 0 {
		radius = 4
	}
	for i := range ps.xs {
		x, y := ps.xs[i], ps.ys[i]
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			continue
		}
		col := ps.color
		if ps.colors != nil {
			col = ps.colors[i]
		}
		if col.A == 0 {
			continue
		}
		cx := canvasBox.Left + xrange.Translate(x)
		cy := canvasBox.Bottom - yrange.Translate(y)
		r.SetFillColor(col)
		r.Circle(radius, cx, cy)
		r.Fill()
	}
	if len(ps.labels) == 0 || style.Font == nil {
		return
	}
	r.SetFont(style.Font)
	r.SetFontSize(11)
	shadow := drawing.Color{A: 200}
	for _, lb := range ps.labels {
		cx := canvasBox.Left + xrange.Translate(lb.x)
		cy := canvasBox.Bottom - yrange.Translate(lb.y)
		tb := r.MeasureText(lb.text)
		cx -= tb.Width() / 2
		r.SetFontColor(shadow)
		r.Text(lb.text, cx+1, cy+1)
		r.SetFontColor(lb.col)
		r.Text(lb.text, cx, cy)
	}
}

// violinSeries renders a mirrored kernel density of values around a
// categorical x position, with an interquartile bar and a median dot.
type violinSeries struct {
	name   string
	center float64
	// width is the maximum half-width in x data units.
	width  float64
	values []float64
	fill   drawing.Color
	stroke drawing.Color
}

func (vs violinSeries) GetName() string { return vs.name }

func (vs violinSeries) GetYAxis() chart.YAxisType { return chart.YAxisPrimary }

func (vs violinSeries) GetStyle() chart.Style {
	return chart.Style{StrokeWidth: 1, StrokeColor: vs.stroke, FillColor: vs.fill}
}

func (vs violinSeries) Validate() error {
	if vs.width <= 0 {
		return fmt.Errorf("violin series %q: non-positive width %g", vs.name, vs.width)
	}
	return nil
}

func (vs violinSeries) Render(r chart.Renderer, canvasBox chart.Box, xrange, yrange chart.Range, defaults chart.Style) {
	vals := make([]float64, 0, len(vs.values))
	for _, v := range vs.values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return
	}
	toX := func(v float64) int { return canvasBox.Left + xrange.Translate(v) }
	toY := func(v float64) int { return canvasBox.Bottom - yrange.Translate(v) }
	clampY := func(v float64) float64 {
		return math.Min(math.Max(v, yrange.GetMin()), yrange.GetMax())
	}

	sigma := stat.StdDev(vals, nil)
	med, _ := stats.Median(vals)
	if len(vals) < 3 || sigma == 0 || math.IsNaN(sigma) {
		// Degenerate distribution: a flat tick at the median.
		r.SetStrokeColor(vs.stroke)
		r.SetStrokeWidth(2)
		r.MoveTo(toX(vs.center-vs.width/2), toY(clampY(med)))
		r.LineTo(toX(vs.center+vs.width/2), toY(clampY(med)))
		r.Stroke()
		return
	}

	// Gaussian KDE with Silverman's bandwidth, evaluated on a fixed grid
	// stretched one bandwidth beyond the data.
	h := 1.06 * sigma * math.Pow(float64(len(vals)), -0.2)
	lo, hi, _ := finiteRange(vals)
	lo, hi = lo-h, hi+h
	const gridN = 64
	kernel := distuv.Normal{Mu: 0, Sigma: h}
	ys := make([]float64, gridN)
	dens := make([]float64, gridN)
	maxDens := 0.0
	for k := 0; k < gridN; k++ {
		y := lo + (hi-lo)*float64(k)/float64(gridN-1)
		ys[k] = clampY(y)
		d := 0.0
		for _, v := range vals {
			d += kernel.Prob(y - v)
		}
		dens[k] = d
		if d > maxDens {
			maxDens = d
		}
	}
	if maxDens == 0 {
		return
	}

	r.SetFillColor(vs.fill)
	r.SetStrokeColor(vs.stroke)
	r.SetStrokeWidth(1)
	r.MoveTo(toX(vs.center+vs.width*dens[0]/maxDens), toY(ys[0]))
	for k := 1; k < gridN; k++ {
		r.LineTo(toX(vs.center+vs.width*dens[k]/maxDens), toY(ys[k]))
	}
	for k := gridN - 1; k >= 0; k-- {
		r.LineTo(toX(vs.center-vs.width*dens[k]/maxDens), toY(ys[k]))
	}
	r.Close()
	r.FillStroke()

	// Interquartile bar plus a median dot, the usual inner box.
	if q, err := stats.Quartile(vals); err == nil {
		r.SetStrokeColor(vs.stroke)
		r.SetStrokeWidth(4)
		r.MoveTo(toX(vs.center), toY(clampY(q.Q1)))
		r.LineTo(toX(vs.center), toY(clampY(q.Q3)))
		r.Stroke()
	}
	r.SetFillColor(white)
	r.Circle(2.5, toX(vs.center), toY(clampY(med)))
	r.Fill()
}
