package kinetics

import (
	"fmt"
	"sort"
	"time"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/sajari/regression"
	"gonum.org/v1/gonum/stat"
)

// GeneStats computes each gene's mean expression and empirical dispersion
// (variance over mean) from the named source ("" or "X" for the expression
// matrix) and stores both on the var table. Genes with zero mean get zero
// dispersion.
func GeneStats(d *dataset.Dataset, source string) error {
	defer dataset.TimeTrack(time.Now(), "gene stats")
	var from dataset.Matrix
	switch source {
	case "", "X", "x":
		from = d.X
	default:
		m, ok := d.Layer(source)
		if !ok {
			return fmt.Errorf("gene stats: layer %q not found (have %v)", source, d.LayerNames())
		}
		from = m
	}
	n, g := from.Dims()
	if n < 2 {
		return fmt.Errorf("gene stats: need at least 2 cells, have %d", n)
	}
	means := make([]float64, g)
	disps := make([]float64, g)
	var col []float64
	for j := 0; j < g; j++ {
		col = from.ColumnInto(col, j)
		m := stat.Mean(col, nil)
		means[j] = m
		if m == 0 {
			continue
		}
		disps[j] = stat.Variance(col, nil) / m
	}
	d.Var.MeanExpression = means
	d.Var.DispersionEmpirical = disps
	return nil
}

// FitDispersionTrend fits disp(mu) = a + b/mu over genes with positive mean
// and dispersion, then evaluates the trend for every gene. The fit itself
// is stored on the dataset so plots can draw the smooth curve.
func FitDispersionTrend(d *dataset.Dataset) error {
	if !d.Var.HasDispersion() {
		return fmt.Errorf("dispersion trend: no gene statistics stored; run GeneStats first")
	}
	r := new(regression.Regression)
	r.SetObserved("dispersion")
	r.SetVar(0, "inverse mean")
	usable := 0
	for j, mu := range d.Var.MeanExpression {
		disp := d.Var.DispersionEmpirical[j]
		if mu <= 0 || disp <= 0 {
			continue
		}
		r.Train(regression.DataPoint(disp, []float64{1 / mu}))
		usable++
	}
	if usable < 2 {
		return fmt.Errorf("dispersion trend: only %d usable genes", usable)
	}
	if err := r.Run(); err != nil {
		return fmt.Errorf("dispersion trend: %w", err)
	}
	fit := &dataset.DispersionFit{Asymptote: r.Coeff(0), ExtraPoisson: r.Coeff(1)}
	fitted := make([]float64, len(d.Var.MeanExpression))
	for j, mu := range d.Var.MeanExpression {
		if mu > 0 {
			fitted[j] = fit.Eval(mu)
		}
	}
	d.DispersionFit = fit
	d.Var.DispersionFitted = fitted
	dataset.Infof("[genestats] dispersion trend over %d genes: asymptote %.3g, extra-poisson %.3g", usable, fit.Asymptote, fit.ExtraPoisson)
	return nil
}

// SelectFeatures marks the topN genes whose empirical dispersion most
// exceeds the fitted trend, the mask the feature-genes plot highlights.
// It returns how many genes were marked.
func SelectFeatures(d *dataset.Dataset, topN int) (int, error) {
	if !d.Var.HasDispersion() || len(d.Var.DispersionFitted) == 0 {
		return 0, fmt.Errorf("select features: run GeneStats and FitDispersionTrend first")
	}
	if topN <= 0 {
		topN = len(d.Var.Index) / 2
	}
	type scored struct {
		j     int
		score float64
	}
	var ranked []scored
	for j := range d.Var.Index {
		mu := d.Var.MeanExpression[j]
		fitted := d.Var.DispersionFitted[j]
		if mu <= 0 || fitted <= 0 {
			continue
		}
		ranked = append(ranked, scored{j, d.Var.DispersionEmpirical[j] / fitted})
	}
	sort.Slice(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })
	selected := make([]bool, len(d.Var.Index))
	count := 0
	for _, s := range ranked {
		if count >= topN {
			break
		}
		selected[s.j] = true
		count++
	}
	d.Var.Selected = selected
	return count, nil
}
