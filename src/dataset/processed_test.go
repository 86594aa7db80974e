package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProcessedRoundTrip(t *testing.T) {
	d, err := Simulate(SimulateOptions{Cells: 30, Genes: 10, Mode: ModeFull, Protein: true, Sparsity: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	// Pretend a fit ran so the var columns ride along.
	g := d.NumGenes()
	d.Var.Gamma = make([]float64, g)
	d.Var.GammaOffset = make([]float64, g)
	for j := 0; j < g; j++ {
		d.Var.Gamma[j] = 0.1 * float64(j+1)
	}
	d.ExplainedVarianceRatio = []float64{0.5, 0.3, 0.2}
	d.DispersionFit = &DispersionFit{Asymptote: 0.4, ExtraPoisson: 1.2}

	path := filepath.Join(t.TempDir(), "processed.json.gz")
	if err := SaveProcessed(d, path, "test-run"); err != nil {
		t.Fatal(err)
	}
	back, err := LoadProcessed(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Meta == nil || back.Meta.SchemaVersion != SchemaVersion {
		t.Fatalf("meta = %+v, want schema version %d", back.Meta, SchemaVersion)
	}
	if back.Meta.RunTag != "test-run" {
		t.Errorf("run tag = %q, want test-run", back.Meta.RunTag)
	}
	if back.Meta.Mode != string(ModeFull) {
		t.Errorf("meta mode = %q, want full", back.Meta.Mode)
	}
	if back.NumCells() != 30 || back.NumGenes() != 10 {
		t.Fatalf("reloaded %dx%d, want 30x10", back.NumCells(), back.NumGenes())
	}
	for _, name := range []string{LayerUU, LayerUL, LayerSU, LayerSL} {
		m, ok := back.Layer(name)
		if !ok {
			t.Fatalf("layer %s lost", name)
		}
		orig, _ := d.Layer(name)
		if m.IsSparse() != orig.IsSparse() {
			t.Errorf("layer %s: sparse=%v after reload, want %v", name, m.IsSparse(), orig.IsSparse())
		}
		if math.Abs(m.At(7, 3)-orig.At(7, 3)) > 1e-12 {
			t.Errorf("layer %s (7,3) = %g, want %g", name, m.At(7, 3), orig.At(7, 3))
		}
	}
	if math.Abs(back.Var.Gamma[4]-0.5) > 1e-12 {
		t.Errorf("gamma[4] = %g, want 0.5", back.Var.Gamma[4])
	}
	if len(back.ExplainedVarianceRatio) != 3 {
		t.Errorf("explained variance = %v", back.ExplainedVarianceRatio)
	}
	if back.DispersionFit == nil || back.DispersionFit.Asymptote != 0.4 {
		t.Errorf("dispersion fit = %+v", back.DispersionFit)
	}
	if !back.HasProtein() || back.ProteinNames[0] != d.ProteinNames[0] {
		t.Error("protein block lost in round trip")
	}
}

func TestProcessedPlainJSON(t *testing.T) {
	d, err := Simulate(SimulateOptions{Cells: 10, Genes: 4})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "processed.json")
	if err := SaveProcessed(d, path, ""); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"schema_version":1`) {
		t.Error("uncompressed envelope should carry the schema version")
	}
	if _, err := LoadProcessed(path); err != nil {
		t.Fatal(err)
	}
}

func TestLoadProcessedRejectsOtherSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.json")
	env := `{"meta":{"schema_version":999},"dataset":{"x":{"rows":1,"cols":1,"dense":[1]},"obs":{"index":["c"]},"var":{"index":["g"]}}}`
	if err := os.WriteFile(path, []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadProcessed(path)
	if err == nil {
		t.Fatal("expected rejection of schema version 999")
	}
	if !strings.Contains(err.Error(), "schema version 999") {
		t.Errorf("error %q should name the offending version", err)
	}
}

func TestLoadProcessedMissingMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.json")
	if err := os.WriteFile(path, []byte(`{"dataset":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProcessed(path); err == nil {
		t.Fatal("expected error for missing meta block")
	}
}
