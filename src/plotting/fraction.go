package plotting

import (
	"fmt"
	"image"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/kinetics"
	"github.com/wcharczuk/go-chart/v2"
)

// FractionsOptions configures the category-fraction violins.
type FractionsOptions struct {
	// Mode "" infers the experiment mode from the layers.
	Mode dataset.Mode
	// Group facets the figure by a categorical obs column.
	Group string
	Theme string
	// Columns caps facet panels per row. Default 4.
	Columns     int
	PanelWidth  int
	PanelHeight int
}

// Fractions draws one violin per transcript category showing how cells
// split their counts, optionally faceted by a grouping annotation. The
// shape answers the first sanity question after an experiment: did the
// labeling (or splicing) capture a believable share of each cell?
func Fractions(d *dataset.Dataset, opts FractionsOptions) (image.Image, error) {
	t, err := ThemeByName(opts.Theme)
	if err != nil {
		return nil, err
	}
	res, err := kinetics.CategoryFractions(d, opts.Mode, opts.Group)
	if err != nil {
		return nil, err
	}
	w, h := opts.PanelWidth, opts.PanelHeight
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	cols := opts.Columns
	if cols <= 0 {
		cols = 4
	}
	colors := t.ColorKey(len(res.Categories))

	panel := func(title string, keep func(i int) bool) image.Image {
		series := make([]chart.Series, 0, len(res.Categories))
		ticks := make([]chart.Tick, 0, len(res.Categories)+2)
		ticks = append(ticks, chart.Tick{Value: 0.5, Label: ""})
		for k, cat := range res.Categories {
			all := res.Values[cat]
			vals := all
			if keep != nil {
				vals = make([]float64, 0, len(all))
				for i, v := range all {
					if keep(i) {
						vals = append(vals, v)
					}
				}
			}
			fill := colors[k]
			fill.A = 200
			series = append(series, violinSeries{
				name:   cat,
				center: float64(k + 1),
				width:  0.38,
				values: vals,
				fill:   fill,
				stroke: t.FontColor(),
			})
			ticks = append(ticks, chart.Tick{Value: float64(k + 1), Label: cat})
		}
		ticks = append(ticks, chart.Tick{Value: float64(len(res.Categories)) + 0.5, Label: ""})

		ch := themedChart(t, title, w, h)
		ch.XAxis.Range = &chart.ContinuousRange{Min: 0.5, Max: float64(len(res.Categories)) + 0.5}
		ch.XAxis.Ticks = ticks
		ch.YAxis.Name = "Fraction"
		ch.YAxis.Range = &chart.ContinuousRange{Min: -0.02, Max: 1.02}
		ch.YAxis.Ticks = niceTicks(0, 1, 6)
		ch.Series = series
		return renderToImage(ch, "fractions "+title)
	}

	if res.Groups == nil {
		return panel("", nil), nil
	}
	panels := make([]image.Image, 0, len(res.GroupLevels))
	for _, level := range res.GroupLevels {
		level := level
		panels = append(panels, panel(fmt.Sprintf("%s = %s", res.GroupColumn, level), func(i int) bool {
			return res.Groups[i] == level
		}))
	}
	return composeGrid(panels, cols, t.Background), nil
}
