package main

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/kinetics"
)

// End-to-end over the real stages: simulate, derive, save, reload. Catches
// wiring mistakes between the stages that the per-package tests cannot see.
func TestPipelineEndToEnd(t *testing.T) {
	d, err := dataset.Simulate(dataset.SimulateOptions{Cells: 100, Genes: 10, Seed: 21})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	mode, err := d.DetectMode()
	if err != nil {
		t.Fatalf("detect mode: %v", err)
	}

	if err := runPipeline(context.Background(), d, mode, 5, 6, 0, 2); err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	if !d.Var.HasDispersion() {
		t.Error("no gene statistics after the pipeline")
	}
	if d.DispersionFit == nil {
		t.Error("no dispersion trend after the pipeline")
	}
	selected := 0
	for _, s := range d.Var.Selected {
		if s {
			selected++
		}
	}
	if selected == 0 {
		t.Error("feature selection kept nothing")
	}
	if !d.Var.HasGamma() {
		t.Error("no steady-state fit after the pipeline")
	}
	if _, ok := d.Layer(dataset.LayerVelocityS); !ok {
		t.Error("no velocity layer after the pipeline")
	}
	if len(d.ExplainedVarianceRatio) == 0 {
		t.Error("no explained variance after the pipeline")
	}

	out := filepath.Join(t.TempDir(), "processed.json.gz")
	if err := dataset.SaveProcessed(d, out, "itest"); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := dataset.LoadProcessed(out)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.NumCells() != d.NumCells() || back.NumGenes() != d.NumGenes() {
		t.Errorf("reload shape = %dx%d, want %dx%d",
			back.NumCells(), back.NumGenes(), d.NumCells(), d.NumGenes())
	}
	if !back.Var.HasGamma() {
		t.Error("steady-state fit lost on the round trip")
	}
	if m, err := back.DetectMode(); err != nil || m != mode {
		t.Errorf("reload mode = %v (%v), want %v", m, err, mode)
	}
	if back.Meta == nil || back.Meta.RunTag != "itest" {
		t.Errorf("run tag lost on the round trip: %+v", back.Meta)
	}
}

func TestVelocityNames(t *testing.T) {
	d, err := dataset.Simulate(dataset.SimulateOptions{Cells: 30, Genes: 4, Seed: 1})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if names := velocityNames(d); len(names) != 0 {
		t.Errorf("velocityNames before derivation = %v, want none", names)
	}
	mode, err := d.DetectMode()
	if err != nil {
		t.Fatalf("detect mode: %v", err)
	}
	if _, err := kinetics.SteadyStateFit(context.Background(), d, mode, kinetics.FitOptions{}); err != nil {
		t.Fatalf("steady-state fit: %v", err)
	}
	if err := kinetics.ComputeVelocity(d, mode); err != nil {
		t.Fatalf("velocity: %v", err)
	}
	names := velocityNames(d)
	if len(names) == 0 || names[0] != dataset.LayerVelocityS {
		t.Errorf("velocityNames after derivation = %v, want velocity_S first", names)
	}
}

func TestMeanSkipNaN(t *testing.T) {
	got := meanSkipNaN([]float64{1, math.NaN(), 3})
	if got != 2 {
		t.Errorf("meanSkipNaN = %v, want 2", got)
	}
	if !math.IsNaN(meanSkipNaN([]float64{math.NaN()})) {
		t.Error("meanSkipNaN of all-NaN input should be NaN")
	}
	if !math.IsNaN(meanSkipNaN(nil)) {
		t.Error("meanSkipNaN of empty input should be NaN")
	}
}
