package plotting

import (
	"fmt"
	"image"
	"math"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/kinetics"
	"github.com/wcharczuk/go-chart/v2"
)

// FeatureGenesOptions configures the mean-dispersion plot.
type FeatureGenesOptions struct {
	// Source is the matrix gene statistics come from when they are not
	// already stored ("" for X).
	Source string
	Theme  string
	Width  int
	Height int
}

// FeatureGenes draws every gene on log-log mean-dispersion axes with the
// fitted trend curve, highlighting the selected feature genes. Gene
// statistics are computed on demand when the dataset has none stored.
func FeatureGenes(d *dataset.Dataset, opts FeatureGenesOptions) (image.Image, error) {
	t, err := ThemeByName(opts.Theme)
	if err != nil {
		return nil, err
	}
	if !d.Var.HasDispersion() {
		if err := kinetics.GeneStats(d, opts.Source); err != nil {
			return nil, err
		}
	}
	if d.DispersionFit == nil {
		if err := kinetics.FitDispersionTrend(d); err != nil {
			return nil, err
		}
	}
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}

	var selX, selY, restX, restY []float64
	minMean, maxMean := math.Inf(1), math.Inf(-1)
	selectedCount := 0
	for j := range d.Var.Index {
		mu := d.Var.MeanExpression[j]
		disp := d.Var.DispersionEmpirical[j]
		if mu <= 0 || disp <= 0 {
			continue
		}
		minMean = math.Min(minMean, mu)
		maxMean = math.Max(maxMean, mu)
		lx, ly := math.Log10(mu), math.Log10(disp)
		// Without a stored selection every usable gene counts as selected,
		// mirroring a fresh dataset where nothing was filtered yet.
		if len(d.Var.Selected) == 0 || d.Var.Selected[j] {
			selX = append(selX, lx)
			selY = append(selY, ly)
			selectedCount++
		} else {
			restX = append(restX, lx)
			restY = append(restY, ly)
		}
	}
	if selectedCount == 0 && len(restX) == 0 {
		return nil, fmt.Errorf("feature genes: no genes with positive mean and dispersion")
	}

	// Smooth trend over the observed mean range.
	var fitX, fitY []float64
	for i := 0; i < 1000; i++ {
		mu := minMean + (maxMean-minMean)*float64(i)/999
		disp := d.DispersionFit.Eval(mu)
		if mu <= 0 || disp <= 0 || math.IsNaN(disp) {
			continue
		}
		fitX = append(fitX, math.Log10(mu))
		fitY = append(fitY, math.Log10(disp))
	}

	allX := append(append([]float64{}, selX...), restX...)
	allY := append(append([]float64{}, selY...), restY...)
	allX = append(allX, fitX...)
	allY = append(allY, fitY...)
	minX, maxX, _ := finiteRange(allX)
	minY, maxY, _ := finiteRange(allY)
	minX, maxX = minX-0.1, maxX+0.1
	minY, maxY = minY-0.1, maxY+0.1

	fitCol := t.FontColor()
	fitCol.A = 150
	selCol := hexColor("#d62728")
	selCol.A = 90
	restCol := hexColor("#4169e1")
	restCol.A = 90

	series := []chart.Series{}
	if len(restX) > 0 {
		series = append(series, pointSeries{
			name: fmt.Sprintf("other (%d)", len(restX)), xs: restX, ys: restY,
			color: restCol, radius: 2,
		})
	}
	if len(selX) > 0 {
		series = append(series, pointSeries{
			name: fmt.Sprintf("selected (%d)", len(selX)), xs: selX, ys: selY,
			color: selCol, radius: 2,
		})
	}
	if len(fitX) > 1 {
		series = append(series, chart.ContinuousSeries{
			Name: "dispersion fit", XValues: fitX, YValues: fitY,
			Style: chart.Style{StrokeWidth: 2, StrokeColor: fitCol},
		})
	}

	ch := themedChart(t, "", w, h)
	ch.XAxis.Name = "Mean expression"
	ch.XAxis.Range = &chart.ContinuousRange{Min: minX, Max: maxX}
	ch.XAxis.Ticks = logDecadeTicks(minX, maxX)
	ch.YAxis.Name = "Dispersion"
	ch.YAxis.Range = &chart.ContinuousRange{Min: minY, Max: maxY}
	ch.YAxis.Ticks = logDecadeTicks(minY, maxY)
	ch.Series = series
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return renderToImage(ch, "feature genes"), nil
}
