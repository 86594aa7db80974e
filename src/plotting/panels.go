package plotting

import (
	"fmt"
	"image"
	"math"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/montanaflynn/stats"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Legend placement names accepted by the scatter options.
const (
	LegendOnData = "on data"
	LegendRight  = "right"
	LegendNone   = "none"
)

// embeddingClass is one categorical level of an embedding scatter.
type embeddingClass struct {
	name   string
	xs, ys []float64
	col    drawing.Color
}

// embeddingSpec describes a single embedding panel: coordinates plus either
// per-point colors (continuous) or per-class series (categorical).
type embeddingSpec struct {
	title        string
	xName, yName string
	xs, ys       []float64
	pointColors  []drawing.Color
	classes      []embeddingClass
	legend       string
	radius       float64
}

// renderEmbedding draws one embedding panel with 5% padding around the
// point cloud.
func renderEmbedding(t *Theme, spec embeddingSpec, w, h int) image.Image {
	minX, maxX := paddedExtent(spec.xs)
	minY, maxY := paddedExtent(spec.ys)
	radius := spec.radius
	if radius <= 0 {
		radius = pointRadius(len(spec.xs))
	}

	series := []chart.Series{}
	if len(spec.classes) > 0 {
		var labelCarrier pointSeries
		for _, cl := range spec.classes {
			series = append(series, pointSeries{
				name: cl.name, xs: cl.xs, ys: cl.ys, color: cl.col, radius: radius,
			})
			if spec.legend == LegendOnData {
				mx, e1 := stats.Median(cl.xs)
				my, e2 := stats.Median(cl.ys)
				if e1 == nil && e2 == nil {
					labelCarrier.labels = append(labelCarrier.labels, seriesLabel{
						text: cl.name, x: mx, y: my, col: t.FontColor(),
					})
				}
			}
		}
		if len(labelCarrier.labels) > 0 {
			series = append(series, labelCarrier)
		}
	} else {
		series = append(series, pointSeries{
			xs: spec.xs, ys: spec.ys, colors: spec.pointColors, radius: radius,
		})
	}

	ch := themedChart(t, spec.title, w, h)
	ch.XAxis.Name = spec.xName
	ch.XAxis.Range = &chart.ContinuousRange{Min: minX, Max: maxX}
	ch.XAxis.Ticks = niceTicks(minX, maxX, 4)
	ch.YAxis.Name = spec.yName
	ch.YAxis.Range = &chart.ContinuousRange{Min: minY, Max: maxY}
	ch.YAxis.Ticks = niceTicks(minY, maxY, 4)
	ch.Series = series
	if len(spec.classes) > 0 && spec.legend == LegendRight {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return renderToImage(ch, "embedding "+spec.title)
}

// phaseSpec describes one phase-plane panel: the point cloud and the
// steady-state line through it.
type phaseSpec struct {
	title        string
	xName, yName string
	xs, ys       []float64
	pointColors  []drawing.Color
	classes      []embeddingClass
	legend       string
	slope        float64
	intercept    float64
	radius       float64
}

// renderPhase draws one phase panel with axes anchored at zero, matching
// how raw counts read.
func renderPhase(t *Theme, spec phaseSpec, w, h int) image.Image {
	_, maxX, okX := finiteRange(spec.xs)
	_, maxY, okY := finiteRange(spec.ys)
	if !okX || !okY || maxX <= 0 {
		maxX, maxY = 1, 1
	}
	if maxY <= 0 {
		maxY = 1
	}
	xHi, yHi := 1.02*maxX, 1.02*maxY

	radius := spec.radius
	if radius <= 0 {
		radius = pointRadius(len(spec.xs))
	}
	series := []chart.Series{}
	if len(spec.classes) > 0 {
		for _, cl := range spec.classes {
			series = append(series, pointSeries{
				name: cl.name, xs: cl.xs, ys: cl.ys, color: cl.col, radius: radius,
			})
		}
	} else {
		series = append(series, pointSeries{
			xs: spec.xs, ys: spec.ys, colors: spec.pointColors, radius: radius,
		})
	}

	// Steady-state line sampled over the x range, trimmed to the panel so
	// steep slopes do not spill over the frame.
	var lineX, lineY []float64
	for i := 0; i <= 50; i++ {
		x := xHi * float64(i) / 50
		y := spec.slope*x + spec.intercept
		if y < 0 || y > yHi {
			continue
		}
		lineX = append(lineX, x)
		lineY = append(lineY, y)
	}
	fitCol := t.FontColor()
	fitCol.A = 170
	if len(lineX) > 1 {
		series = append(series, chart.ContinuousSeries{
			XValues: lineX, YValues: lineY,
			Style: chart.Style{StrokeWidth: 2, StrokeColor: fitCol, StrokeDashArray: []float64{4, 3}},
		})
	}

	ch := themedChart(t, spec.title, w, h)
	ch.XAxis.Name = spec.xName
	ch.XAxis.Range = &chart.ContinuousRange{Min: 0, Max: xHi}
	ch.XAxis.Ticks = niceTicks(0, xHi, 4)
	ch.YAxis.Name = spec.yName
	ch.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: yHi}
	ch.YAxis.Ticks = niceTicks(0, yHi, 4)
	ch.Series = series
	if len(spec.classes) > 0 && spec.legend == LegendRight {
		ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	}
	return renderToImage(ch, "phase "+spec.title)
}

// classesFromLabels splits coordinates by a categorical annotation, colored
// from the theme's key palette in order of first appearance.
func classesFromLabels(t *Theme, labels []string, xs, ys []float64, alpha uint8) []embeddingClass {
	var order []string
	index := map[string]int{}
	for _, l := range labels {
		if _, ok := index[l]; !ok {
			index[l] = len(order)
			order = append(order, l)
		}
	}
	cols := t.ColorKey(len(order))
	classes := make([]embeddingClass, len(order))
	for i, name := range order {
		c := cols[i]
		c.A = alpha
		classes[i] = embeddingClass{name: name, col: c}
	}
	for i, l := range labels {
		k := index[l]
		classes[k].xs = append(classes[k].xs, xs[i])
		classes[k].ys = append(classes[k].ys, ys[i])
	}
	return classes
}

// colorsFromValues maps normalized values through the theme colormap.
func colorsFromValues(t *Theme, vals []float64, alpha uint8) []drawing.Color {
	out := make([]drawing.Color, len(vals))
	for i, v := range vals {
		out[i] = t.MapValue(v, alpha)
	}
	return out
}

// resolveVelocitySource maps a velocity key to the stored layer or obsm
// entry holding it. Accepted keys: S, U, P (case as written), a full layer
// name, or "" for the default spliced velocity.
func resolveVelocitySource(d *dataset.Dataset, key string) (source string, protein bool, err error) {
	switch key {
	case "", "S", dataset.LayerVelocityS:
		source = dataset.LayerVelocityS
	case "U", dataset.LayerVelocityU:
		source = dataset.LayerVelocityU
	case "P", dataset.ObsmVelocityProtein:
		if _, ok := d.Obsm[dataset.ObsmVelocityProtein]; !ok {
			return "", false, fmt.Errorf("no %s stored; velocity estimation with protein data is required first", dataset.ObsmVelocityProtein)
		}
		return dataset.ObsmVelocityProtein, true, nil
	default:
		source = key
	}
	if _, ok := d.Layer(source); !ok {
		return "", false, fmt.Errorf("layer %q not found; velocity estimation is required before plotting velocity", source)
	}
	return source, false, nil
}

// sanitizeAlpha turns a [0,1] opacity into the color alpha byte, defaulting
// to the usual scatter transparency.
func sanitizeAlpha(a float64) uint8 {
	if a <= 0 {
		a = 0.4
	}
	if a > 1 {
		a = 1
	}
	return uint8(math.Round(a * 255))
}
