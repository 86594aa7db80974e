package plotting

import (
	"fmt"
	"image"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/kinetics"
	"github.com/wcharczuk/go-chart/v2"
)

// VarianceOptions configures the variance-explained curve.
type VarianceOptions struct {
	// Threshold is the per-component gain below which the curve counts as
	// flat; the elbow marker sits at the first crossing. Default 0.002.
	Threshold float64
	// NPCs forces the marker to a component count, overriding the elbow.
	NPCs   int
	Theme  string
	Width  int
	Height int
}

// VarianceExplained draws the cumulative explained-variance curve of the
// stored PCA with a dashed marker at the chosen component cutoff.
func VarianceExplained(d *dataset.Dataset, opts VarianceOptions) (image.Image, error) {
	t, err := ThemeByName(opts.Theme)
	if err != nil {
		return nil, err
	}
	ratios := d.ExplainedVarianceRatio
	if len(ratios) == 0 {
		return nil, fmt.Errorf("variance explained: no explained variance stored; run PCA first")
	}
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}

	xs := make([]float64, len(ratios))
	cum := make([]float64, len(ratios))
	run := 0.0
	for i, r := range ratios {
		run += r
		xs[i] = float64(i)
		cum[i] = run
	}
	elbow := kinetics.FindElbow(ratios, opts.Threshold, opts.NPCs)

	curveCol := hexColor("#1f77b4")
	if t.IsDark() {
		curveCol = hexColor("#6baed6")
	}
	markerCol := t.FontColor()
	markerCol.A = 160

	yMin, yMax := niceAxisBounds(cum[0], 1)
	if yMax > 1.05 {
		yMax = 1.05
	}

	ch := themedChart(t, "", w, h)
	ch.XAxis.Name = "Principal component"
	ch.XAxis.Range = &chart.ContinuousRange{Min: -0.5, Max: float64(len(ratios)-1) + 0.5}
	ch.XAxis.Ticks = componentTicks(len(ratios))
	ch.YAxis.Name = "Cumulative variance explained"
	ch.YAxis.Range = &chart.ContinuousRange{Min: yMin, Max: yMax}
	ch.YAxis.Ticks = niceTicks(yMin, yMax, 6)
	ch.Series = []chart.Series{
		chart.ContinuousSeries{
			Name:    "cumulative variance",
			XValues: xs,
			YValues: cum,
			Style:   chart.Style{StrokeWidth: 1.5, StrokeColor: curveCol, DotWidth: 2.5, DotColor: curveCol},
		},
		chart.ContinuousSeries{
			Name:    fmt.Sprintf("cutoff at PC %d", elbow+1),
			XValues: []float64{float64(elbow), float64(elbow)},
			YValues: []float64{yMin, yMax},
			Style:   chart.Style{StrokeWidth: 1, StrokeColor: markerCol, StrokeDashArray: []float64{5, 5}},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return renderToImage(ch, "variance explained"), nil
}

// componentTicks labels whole component indices, thinning as counts grow.
func componentTicks(n int) []chart.Tick {
	step := 1
	for n/step > 10 {
		step *= 2
	}
	ticks := []chart.Tick{}
	for i := 0; i < n; i += step {
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: fmt.Sprintf("%d", i+1)})
	}
	return ticks
}
