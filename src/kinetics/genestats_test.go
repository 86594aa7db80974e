package kinetics

import (
	"math"
	"testing"

	"github.com/ajinocean/dynamo-release/src/dataset"
)

func TestGeneStats(t *testing.T) {
	// Column 0: values 1,2,3 (mean 2, sample variance 1). Column 1: zeros.
	x, _ := dataset.NewDense(3, 2, []float64{1, 0, 2, 0, 3, 0})
	d := dataset.New(x)
	if err := GeneStats(d, ""); err != nil {
		t.Fatal(err)
	}
	if !d.Var.HasDispersion() {
		t.Fatal("statistics not stored")
	}
	if math.Abs(d.Var.MeanExpression[0]-2) > 1e-12 {
		t.Errorf("mean[0] = %g, want 2", d.Var.MeanExpression[0])
	}
	if math.Abs(d.Var.DispersionEmpirical[0]-0.5) > 1e-12 {
		t.Errorf("dispersion[0] = %g, want variance/mean = 0.5", d.Var.DispersionEmpirical[0])
	}
	if d.Var.MeanExpression[1] != 0 || d.Var.DispersionEmpirical[1] != 0 {
		t.Errorf("silent gene should have zero mean and dispersion, got (%g,%g)",
			d.Var.MeanExpression[1], d.Var.DispersionEmpirical[1])
	}
}

func TestGeneStatsLayerSource(t *testing.T) {
	d, err := dataset.Simulate(dataset.SimulateOptions{Cells: 10, Genes: 3})
	if err != nil {
		t.Fatal(err)
	}
	if err := GeneStats(d, dataset.LayerSpliced); err != nil {
		t.Fatal(err)
	}
	if err := GeneStats(d, "no_such_layer"); err == nil {
		t.Fatal("expected error for unknown source layer")
	}
}

func TestFitDispersionTrendExact(t *testing.T) {
	x, _ := dataset.NewDense(2, 4, nil)
	d := dataset.New(x)
	// Dispersion sits exactly on disp = 0.5 + 2/mu, so the fit is exact.
	d.Var.MeanExpression = []float64{1, 2, 4, 8}
	d.Var.DispersionEmpirical = []float64{2.5, 1.5, 1.0, 0.75}

	if err := FitDispersionTrend(d); err != nil {
		t.Fatal(err)
	}
	if d.DispersionFit == nil {
		t.Fatal("fit not stored")
	}
	if math.Abs(d.DispersionFit.Asymptote-0.5) > 1e-6 {
		t.Errorf("asymptote = %g, want 0.5", d.DispersionFit.Asymptote)
	}
	if math.Abs(d.DispersionFit.ExtraPoisson-2) > 1e-6 {
		t.Errorf("extra-poisson term = %g, want 2", d.DispersionFit.ExtraPoisson)
	}
	for j, mu := range d.Var.MeanExpression {
		want := 0.5 + 2/mu
		if math.Abs(d.Var.DispersionFitted[j]-want) > 1e-6 {
			t.Errorf("fitted[%d] = %g, want %g", j, d.Var.DispersionFitted[j], want)
		}
	}
}

func TestFitDispersionTrendNeedsStats(t *testing.T) {
	x, _ := dataset.NewDense(2, 2, nil)
	d := dataset.New(x)
	if err := FitDispersionTrend(d); err == nil {
		t.Fatal("expected error before GeneStats")
	}
	// One usable gene is not enough for a two-parameter fit.
	d.Var.MeanExpression = []float64{1, 0}
	d.Var.DispersionEmpirical = []float64{0.5, 0}
	if err := FitDispersionTrend(d); err == nil {
		t.Fatal("expected error with a single usable gene")
	}
}

func TestSelectFeatures(t *testing.T) {
	x, _ := dataset.NewDense(2, 4, nil)
	d := dataset.New(x)
	d.Var.MeanExpression = []float64{1, 1, 1, 1}
	d.Var.DispersionEmpirical = []float64{4, 1, 3, 2}
	d.Var.DispersionFitted = []float64{1, 1, 1, 1}

	count, err := SelectFeatures(d, 2)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("selected %d genes, want 2", count)
	}
	want := []bool{true, false, true, false}
	for j, w := range want {
		if d.Var.Selected[j] != w {
			t.Errorf("selected[%d] = %v, want %v", j, d.Var.Selected[j], w)
		}
	}

	// Default keeps half the genes.
	count, err = SelectFeatures(d, 0)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("default selected %d genes, want half = 2", count)
	}
}

func TestSelectFeaturesNeedsTrend(t *testing.T) {
	x, _ := dataset.NewDense(2, 2, nil)
	d := dataset.New(x)
	if _, err := SelectFeatures(d, 1); err == nil {
		t.Fatal("expected error before the dispersion trend is fitted")
	}
}
