package kinetics

import (
	"math"
	"testing"

	"github.com/ajinocean/dynamo-release/src/dataset"
)

func TestPCAStoresScoresAndRatios(t *testing.T) {
	d, err := dataset.Simulate(dataset.SimulateOptions{Cells: 60, Genes: 10})
	if err != nil {
		t.Fatal(err)
	}
	if err := PCA(d, 0); err != nil {
		t.Fatal(err)
	}
	scores, ok := d.Obsm[dataset.ObsmPCA]
	if !ok {
		t.Fatal("X_pca not stored")
	}
	n, k := scores.Dims()
	if n != 60 {
		t.Fatalf("scores have %d rows, want 60", n)
	}
	// Only 10 genes, so the default 30 components clamp to 10.
	if k != 10 {
		t.Fatalf("scores have %d components, want 10", k)
	}
	ratios := d.ExplainedVarianceRatio
	if len(ratios) != k {
		t.Fatalf("%d ratios for %d components", len(ratios), k)
	}
	sum := 0.0
	for i, r := range ratios {
		if r < 0 || r > 1 {
			t.Errorf("ratio[%d] = %g outside [0,1]", i, r)
		}
		if i > 0 && r > ratios[i-1]+1e-12 {
			t.Errorf("ratio[%d] = %g rises above ratio[%d] = %g", i, r, i-1, ratios[i-1])
		}
		sum += r
	}
	if sum > 1+1e-9 {
		t.Errorf("ratios sum to %g, want at most 1", sum)
	}
	// All variance is accounted for when every component is kept.
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("full decomposition should explain all variance, got %g", sum)
	}
}

func TestPCAExplicitComponents(t *testing.T) {
	d, err := dataset.Simulate(dataset.SimulateOptions{Cells: 40, Genes: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := PCA(d, 3); err != nil {
		t.Fatal(err)
	}
	_, k := d.Obsm[dataset.ObsmPCA].Dims()
	if k != 3 {
		t.Fatalf("kept %d components, want 3", k)
	}
	if len(d.ExplainedVarianceRatio) != 3 {
		t.Fatalf("%d ratios, want 3", len(d.ExplainedVarianceRatio))
	}
}

func TestPCATooFewCells(t *testing.T) {
	x, _ := dataset.NewDense(1, 3, []float64{1, 2, 3})
	d := dataset.New(x)
	if err := PCA(d, 2); err == nil {
		t.Fatal("expected error with a single cell")
	}
}

func TestFindElbow(t *testing.T) {
	cases := []struct {
		name      string
		ratios    []float64
		threshold float64
		nPCs      int
		want      int
	}{
		{"explicit choice wins", []float64{0.5, 0.3, 0.2}, 0.002, 2, 1},
		{"explicit choice clamped", []float64{0.5, 0.3, 0.2}, 0.002, 99, 2},
		{"gain crosses threshold", []float64{0.5, 0.3, 0.1, 0.001, 0.0005}, 0.002, 0, 1},
		{"no crossing falls back", []float64{0.1, 0.1, 0.1, 0.1, 0.1}, 0.002, 0, 4},
		{"empty", nil, 0.002, 0, 0},
	}
	for _, c := range cases {
		if got := FindElbow(c.ratios, c.threshold, c.nPCs); got != c.want {
			t.Errorf("%s: FindElbow = %d, want %d", c.name, got, c.want)
		}
	}

	// Long flat tails land on the conventional 20-component cutoff.
	long := make([]float64, 40)
	for i := range long {
		long[i] = 0.025
	}
	if got := FindElbow(long, 0.002, 0); got != 20 {
		t.Errorf("flat 40-component curve: FindElbow = %d, want 20", got)
	}
}
