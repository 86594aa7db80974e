package kinetics

import (
	"fmt"
	"time"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"gonum.org/v1/gonum/mat"
)

// ComputeVelocity turns the stored steady-state fit into per-cell velocity
// residuals: velocity = nascent - gamma*mature - offset. The result lands
// in the velocity_S layer; with protein fits present, per-cell protein
// residuals land in the velocity_P obsm entry.
func ComputeVelocity(d *dataset.Dataset, mode dataset.Mode) error {
	defer dataset.TimeTrack(time.Now(), "velocity")
	var err error
	if mode == "" {
		mode, err = d.DetectMode()
		if err != nil {
			return err
		}
	}
	if !d.Var.HasGamma() {
		return fmt.Errorf("velocity: no gamma column stored; run the steady-state fit first")
	}
	x, y, _, _, err := PhaseSources(d, mode)
	if err != nil {
		return fmt.Errorf("velocity: %w", err)
	}

	n, g := d.X.Dims()
	vel := mat.NewDense(n, g, nil)
	var xs, ys []float64
	for j := 0; j < g; j++ {
		xs = x.ColumnInto(xs, j)
		ys = y.ColumnInto(ys, j)
		gm, off := d.Var.Gamma[j], d.Var.GammaOffset[j]
		for i := 0; i < n; i++ {
			vel.Set(i, j, ys[i]-gm*xs[i]-off)
		}
	}
	if err := d.SetLayer(dataset.LayerVelocityS, dataset.WrapDense(vel)); err != nil {
		return err
	}

	if mode == dataset.ModeFull && d.HasProtein() && d.Var.HasDelta() {
		if err := proteinVelocity(d); err != nil {
			return err
		}
	}
	dataset.Infof("[velocity] wrote %s for %d genes", dataset.LayerVelocityS, g)
	return nil
}

func proteinVelocity(d *dataset.Dataset) error {
	p := d.Obsm[dataset.ObsmProtein]
	n, np := p.Dims()
	spliced, err := sumLayers(d, dataset.LayerSU, dataset.LayerSL)
	if err != nil {
		return err
	}
	vp := mat.NewDense(n, np, nil)
	xs := make([]float64, n)
	var ys []float64
	for k := 0; k < np; k++ {
		mat.Col(xs, k, p)
		ys = spliced.ColumnInto(ys, k)
		dm, off := d.Var.Delta[k], d.Var.DeltaOffset[k]
		for i := 0; i < n; i++ {
			vp.Set(i, k, ys[i]-dm*xs[i]-off)
		}
	}
	d.Obsm[dataset.ObsmVelocityProtein] = vp
	return nil
}
