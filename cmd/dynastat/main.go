package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/kinetics"
)

func main() {
	var file string
	var loglevel string
	flag.StringVar(&file, "file", "processed.json.gz", "Path to a processed dataset (.json or .json.gz)")
	flag.StringVar(&loglevel, "loglevel", "warn", "Log level (debug|info|warn|error)")
	flag.Parse()
	dataset.SetLogLevel(loglevel)

	d, err := dataset.LoadProcessed(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	mode := "unknown"
	if m, err := d.DetectMode(); err == nil {
		mode = string(m)
	}
	fmt.Printf("Dataset: %d cells x %d genes (mode %s, run_tag %s)\n", d.NumCells(), d.NumGenes(), mode, d.Meta.RunTag)
	fmt.Printf("Layers: %s\n", strings.Join(d.LayerNames(), ", "))
	if names := d.ObsmNames(); len(names) > 0 {
		fmt.Printf("Obsm: %s\n", strings.Join(names, ", "))
	}
	if len(d.ProteinNames) > 0 {
		fmt.Printf("Proteins: %s\n", strings.Join(d.ProteinNames, ", "))
	}
	if cols := d.Obs.LabelColumns(); len(cols) > 0 {
		fmt.Printf("Obs labels: %s\n", strings.Join(cols, ", "))
	}
	if cols := d.Obs.ValueColumns(); len(cols) > 0 {
		fmt.Printf("Obs values: %s\n", strings.Join(cols, ", "))
	}

	flags := []string{}
	if d.Var.HasDispersion() {
		flags = append(flags, "gene stats")
	}
	if d.DispersionFit != nil {
		flags = append(flags, "dispersion trend")
	}
	if d.Var.HasGamma() {
		flags = append(flags, "gamma fit")
	}
	if d.Var.HasDelta() {
		flags = append(flags, "delta fit")
	}
	if _, ok := d.Layer(dataset.LayerVelocityS); ok {
		flags = append(flags, "velocity")
	}
	if len(flags) > 0 {
		fmt.Printf("Derived: %s\n", strings.Join(flags, ", "))
	}

	if ratios := d.ExplainedVarianceRatio; len(ratios) > 0 {
		elbow := kinetics.FindElbow(ratios, 0, 0)
		cum := 0.0
		for i := 0; i <= elbow && i < len(ratios); i++ {
			cum += ratios[i]
		}
		fmt.Printf("PCA: %d components, elbow at PC %d (%.1f%% variance)\n", len(ratios), elbow+1, 100*cum)
	}
}
