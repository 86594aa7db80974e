package kinetics

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/montanaflynn/stats"
	"github.com/sajari/regression"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// FitOptions tunes the steady-state fit.
type FitOptions struct {
	// Quantile is the percent tail taken on each side of the mature
	// abundance when selecting extreme cells. Default 5.
	Quantile float64
	// Workers caps concurrent per-gene fits. Default GOMAXPROCS.
	Workers int
}

// FitResult summarizes a steady-state fit.
type FitResult struct {
	Genes      int
	Degenerate int
	Proteins   int
}

// PhaseSources returns the mature (x) and nascent (y) abundance sources a
// mode's phase plane is built on, plus axis labels. Full mode sums the four
// species into total and labeled matrices.
func PhaseSources(d *dataset.Dataset, mode dataset.Mode) (x, y dataset.Matrix, xLabel, yLabel string, err error) {
	layer := func(name string) (dataset.Matrix, error) {
		m, ok := d.Layer(name)
		if !ok {
			return nil, fmt.Errorf("layer %q required for %s mode", name, mode)
		}
		return m, nil
	}
	switch mode {
	case dataset.ModeLabeling:
		if x, err = layer(dataset.LayerTotal); err != nil {
			return nil, nil, "", "", err
		}
		if y, err = layer(dataset.LayerNew); err != nil {
			return nil, nil, "", "", err
		}
		return x, y, "total", "new", nil
	case dataset.ModeSplicing:
		if x, err = layer(dataset.LayerSpliced); err != nil {
			return nil, nil, "", "", err
		}
		if y, err = layer(dataset.LayerUnspliced); err != nil {
			return nil, nil, "", "", err
		}
		return x, y, "spliced", "unspliced", nil
	case dataset.ModeFull:
		if x, err = sumLayers(d, dataset.LayerUU, dataset.LayerUL, dataset.LayerSU, dataset.LayerSL); err != nil {
			return nil, nil, "", "", err
		}
		if y, err = sumLayers(d, dataset.LayerUL, dataset.LayerSL); err != nil {
			return nil, nil, "", "", err
		}
		return x, y, "total", "new", nil
	}
	return nil, nil, "", "", fmt.Errorf("unknown mode %q", mode)
}

// sumLayers adds the named layers into one dense matrix.
func sumLayers(d *dataset.Dataset, names ...string) (dataset.Matrix, error) {
	n, g := d.X.Dims()
	out := mat.NewDense(n, g, nil)
	for _, name := range names {
		m, ok := d.Layer(name)
		if !ok {
			return nil, fmt.Errorf("layer %q required for %s", name, dataset.ModeFull)
		}
		if sm, isSparse := m.(*dataset.SparseMatrix); isSparse {
			sm.CSR().DoNonZero(func(i, j int, v float64) {
				out.Set(i, j, out.At(i, j)+v)
			})
			continue
		}
		out.Add(out, m.Dense())
	}
	return dataset.WrapDense(out), nil
}

// SteadyStateFit regresses nascent on mature abundance over cells in the
// extreme mature quantiles, gene by gene, and stores the slope (gamma) and
// intercept per gene. Cells far from equilibrium dilute the slope, hence
// the restriction to the distribution tails. With protein measurements
// present (full mode) each protein gets the analogous spliced-on-protein
// fit (delta).
func SteadyStateFit(ctx context.Context, d *dataset.Dataset, mode dataset.Mode, opts FitOptions) (*FitResult, error) {
	defer dataset.TimeTrack(time.Now(), "steady-state fit")
	var err error
	if mode == "" {
		mode, err = d.DetectMode()
		if err != nil {
			return nil, err
		}
	}
	q := opts.Quantile
	if q == 0 {
		q = 5
	}
	if q < 0 || q >= 50 {
		return nil, fmt.Errorf("fit: quantile %g outside (0,50)", q)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	x, y, _, _, err := PhaseSources(d, mode)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	g := d.NumGenes()
	gamma := make([]float64, g)
	offset := make([]float64, g)
	var degenerate int64

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for j := 0; j < g; j++ {
		j := j
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			xs := x.ColumnInto(nil, j)
			ys := y.ColumnInto(nil, j)
			gm, off, ok := fitGene(xs, ys, q)
			if !ok {
				atomic.AddInt64(&degenerate, 1)
			}
			gamma[j] = gm
			offset[j] = off
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	d.Var.Gamma = gamma
	d.Var.GammaOffset = offset

	res := &FitResult{Genes: g, Degenerate: int(degenerate)}
	if mode == dataset.ModeFull && d.HasProtein() {
		if err := fitProtein(d, q, res); err != nil {
			return nil, err
		}
	}
	dataset.Infof("[fit] %s mode: %d genes, %d degenerate, %d proteins", mode, res.Genes, res.Degenerate, res.Proteins)
	return res, nil
}

// fitProtein fits spliced abundance against protein level for each measured
// protein. Protein columns map positionally onto the leading genes.
func fitProtein(d *dataset.Dataset, q float64, res *FitResult) error {
	p := d.Obsm[dataset.ObsmProtein]
	_, np := p.Dims()
	g := d.NumGenes()
	if np > g {
		return fmt.Errorf("fit: %d protein columns for %d genes", np, g)
	}
	spliced, err := sumLayers(d, dataset.LayerSU, dataset.LayerSL)
	if err != nil {
		return err
	}
	delta := make([]float64, g)
	doffset := make([]float64, g)
	n := d.NumCells()
	xs := make([]float64, n)
	var ys []float64
	for k := 0; k < np; k++ {
		mat.Col(xs, k, p)
		ys = spliced.ColumnInto(ys, k)
		dm, off, ok := fitGene(xs, ys, q)
		if !ok {
			res.Degenerate++
		}
		delta[k] = dm
		doffset[k] = off
	}
	d.Var.Delta = delta
	d.Var.DeltaOffset = doffset
	res.Proteins = np
	return nil
}

// fitGene runs one extreme-quantile regression. ok is false when the gene
// is degenerate (too few usable cells or a failed fit); gamma and offset
// are then zero.
func fitGene(xs, ys []float64, q float64) (gamma, offset float64, ok bool) {
	lo, e1 := stats.Percentile(xs, q)
	hi, e2 := stats.Percentile(xs, 100-q)
	if e1 != nil || e2 != nil {
		return 0, 0, false
	}
	r := new(regression.Regression)
	r.SetObserved("nascent")
	r.SetVar(0, "mature")
	points := 0
	minX, maxX := math.Inf(1), math.Inf(-1)
	for i, xv := range xs {
		yv := ys[i]
		if math.IsNaN(xv) || math.IsNaN(yv) {
			continue
		}
		if xv > lo && xv < hi {
			continue
		}
		r.Train(regression.DataPoint(yv, []float64{xv}))
		points++
		minX = math.Min(minX, xv)
		maxX = math.Max(maxX, xv)
	}
	if points < 2 || minX == maxX {
		return 0, 0, false
	}
	if err := r.Run(); err != nil {
		return 0, 0, false
	}
	gamma = r.Coeff(1)
	offset = r.Coeff(0)
	if math.IsNaN(gamma) || math.IsInf(gamma, 0) || math.IsNaN(offset) || math.IsInf(offset, 0) {
		return 0, 0, false
	}
	return gamma, offset, true
}
