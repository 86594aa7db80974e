package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadDirRoundTrip(t *testing.T) {
	d, err := Simulate(SimulateOptions{Cells: 25, Genes: 8, Mode: ModeSplicing, Sparsity: 0.3})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := SaveDir(d, dir); err != nil {
		t.Fatal(err)
	}
	for _, base := range []string{"x.mtx.gz", "spliced.mtx.gz", "genes.tsv.gz", "barcodes.tsv.gz", "obs.tsv.gz", "umap.tsv.gz"} {
		if _, err := os.Stat(filepath.Join(dir, base)); err != nil {
			t.Errorf("expected %s after save: %v", base, err)
		}
	}

	back, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if back.NumCells() != d.NumCells() || back.NumGenes() != d.NumGenes() {
		t.Fatalf("reloaded %dx%d, want %dx%d", back.NumCells(), back.NumGenes(), d.NumCells(), d.NumGenes())
	}
	for i := 0; i < d.NumCells(); i++ {
		for j := 0; j < d.NumGenes(); j++ {
			if math.Abs(back.X.At(i, j)-d.X.At(i, j)) > 1e-9 {
				t.Fatalf("X(%d,%d) = %g after round trip, want %g", i, j, back.X.At(i, j), d.X.At(i, j))
			}
		}
	}
	sp, ok := back.Layer(LayerSpliced)
	if !ok {
		t.Fatal("spliced layer lost in round trip")
	}
	orig, _ := d.Layer(LayerSpliced)
	if math.Abs(sp.At(3, 2)-orig.At(3, 2)) > 1e-9 {
		t.Errorf("spliced(3,2) = %g, want %g", sp.At(3, 2), orig.At(3, 2))
	}
	if got := back.Obs.Labels["cluster"]; len(got) != 25 {
		t.Errorf("cluster column has %d entries after reload", len(got))
	}
	pt := back.Obs.Values["pseudotime"]
	if len(pt) != 25 || math.Abs(pt[0]-d.Obs.Values["pseudotime"][0]) > 1e-12 {
		t.Errorf("pseudotime not preserved: %v", pt[:1])
	}
	if _, ok := back.Obsm["X_umap"]; !ok {
		t.Error("umap embedding lost in round trip")
	}
	if back.Obs.Index[0] != d.Obs.Index[0] {
		t.Errorf("barcode index[0] = %q, want %q", back.Obs.Index[0], d.Obs.Index[0])
	}
}

func TestSaveLoadDirProtein(t *testing.T) {
	d, err := Simulate(SimulateOptions{Cells: 20, Genes: 6, Mode: ModeFull, Protein: true})
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := SaveDir(d, dir); err != nil {
		t.Fatal(err)
	}
	back, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !back.HasProtein() {
		t.Fatal("protein abundance lost in round trip")
	}
	if len(back.ProteinNames) != len(d.ProteinNames) || back.ProteinNames[0] != d.ProteinNames[0] {
		t.Errorf("protein names = %v, want %v", back.ProteinNames, d.ProteinNames)
	}
	p := back.Obsm[ObsmProtein]
	q := d.Obsm[ObsmProtein]
	if math.Abs(p.At(5, 1)-q.At(5, 1)) > 1e-9 {
		t.Errorf("protein(5,1) = %g, want %g", p.At(5, 1), q.At(5, 1))
	}
}

// writeFileT is a tiny helper for hand-built dataset directories.
func writeFileT(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDirFallbackXAndTranspose(t *testing.T) {
	dir := t.TempDir()
	writeFileT(t, filepath.Join(dir, "genes.tsv"), "ENSG1\tNanog\nENSG2\tSox2\n")
	writeFileT(t, filepath.Join(dir, "barcodes.tsv"), "AAA\nCCC\nGGG\n")
	// Stored genes-by-cells (2x3): load must transpose to 3 cells x 2 genes.
	writeFileT(t, filepath.Join(dir, "spliced.mtx"), "%%MatrixMarket matrix coordinate real general\n2 3 2\n1 1 4\n2 3 6\n")
	writeFileT(t, filepath.Join(dir, "unspliced.mtx"), "%%MatrixMarket matrix coordinate real general\n3 2 1\n2 1 1.5\n")

	d, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if d.NumCells() != 3 || d.NumGenes() != 2 {
		t.Fatalf("loaded %dx%d, want 3x2", d.NumCells(), d.NumGenes())
	}
	if d.Var.Index[0] != "Nanog" {
		t.Errorf("gene symbol preferred over id, got %q", d.Var.Index[0])
	}
	// No x.mtx: X falls back to the spliced layer.
	if got := d.X.At(0, 0); got != 4 {
		t.Errorf("X(0,0) = %g, want 4 from transposed spliced", got)
	}
	if got := d.X.At(2, 1); got != 6 {
		t.Errorf("X(2,1) = %g, want 6 from transposed spliced", got)
	}
	un, _ := d.Layer(LayerUnspliced)
	if got := un.At(1, 0); got != 1.5 {
		t.Errorf("unspliced(1,0) = %g, want 1.5 kept as stored", got)
	}
}

func TestLoadDirMissingTables(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadDir(dir); err == nil {
		t.Fatal("expected error for empty directory")
	}
	writeFileT(t, filepath.Join(dir, "genes.tsv"), "g1\n")
	if _, err := LoadDir(dir); err == nil {
		t.Fatal("expected error without barcodes.tsv")
	}
	writeFileT(t, filepath.Join(dir, "barcodes.tsv"), "AAA\n")
	if _, err := LoadDir(dir); err == nil {
		t.Fatal("expected error without any matrix to derive X from")
	}
}
