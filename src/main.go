// Dynamo pipeline entrypoint.
//
// Two modes:
//  1. Load mode (default): read a matrix-market dataset directory (-dir) or an
//     already processed dataset (-load), derive kinetics, write the processed file.
//  2. Demo mode (-demo): simulate a two-branch differentiation dataset with known
//     rates and run the same derivation, so the viewers work without real data.
//
// Design notes:
// - Batch identity: run_tag (timestamp base, overridable via -run-tag) stored in
//   the processed meta so viewers can tell datasets apart.
// - Pipeline order: gene stats -> dispersion trend -> feature selection ->
//   steady-state fit -> velocity layers -> PCA. Each stage prints a one-line
//   summary; -loglevel debug adds per-stage timings.
// - The processed output (.json or .json.gz) is self-contained; the viewers
//   never need the original directory.
// - Dependency direction: main -> kinetics for derivation; dataset for I/O only.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/kinetics"
)

func main() {
	dir := flag.String("dir", "", "Dataset directory with matrix-market layers (genes.tsv, barcodes.tsv, *.mtx[.gz])")
	loadPath := flag.String("load", "", "Processed dataset (.json or .json.gz) to re-derive instead of a raw directory")
	demo := flag.Bool("demo", false, "Simulate a demo dataset instead of loading one")
	demoCells := flag.Int("demo-cells", 300, "Demo mode: number of cells")
	demoGenes := flag.Int("demo-genes", 40, "Demo mode: number of genes")
	demoProtein := flag.Bool("demo-protein", false, "Demo mode: add protein abundance for the first genes (full mode only)")
	demoSeed := flag.Int64("demo-seed", 42, "Demo mode: RNG seed (same seed, same dataset)")
	outFile := flag.String("out", "processed.json.gz", "Output processed dataset path (.json or .json.gz)")
	modeFlag := flag.String("mode", "auto", "Experiment mode (labeling|splicing|full|auto)")
	fitQuantile := flag.Float64("fit-quantile", 5, "Percent tail on each side used to pick steady-state cells")
	pcs := flag.Int("pcs", 30, "Number of principal components (capped by the dataset shape)")
	features := flag.Int("features", 0, "Top-N genes kept by the feature selection (0 = half the genes)")
	threads := flag.Int("threads", 0, "Maximum concurrent per-gene fits (0 = GOMAXPROCS)")
	runTag := flag.String("run-tag", "", "Batch tag stored in the processed meta (default: UTC timestamp)")
	logLevel := flag.String("loglevel", "info", "Log level (debug|info|warn|error)")
	flag.Parse()

	dataset.SetLogLevel(*logLevel)

	tag := *runTag
	if tag == "" {
		tag = time.Now().UTC().Format("20060102_150405")
	}

	mode, err := dataset.ParseMode(*modeFlag)
	if err != nil {
		fmt.Printf("[init] %v\n", err)
		os.Exit(2)
	}

	var d *dataset.Dataset
	switch {
	case *demo:
		simMode := mode
		if simMode == "" {
			simMode = dataset.ModeSplicing
		}
		d, err = dataset.Simulate(dataset.SimulateOptions{
			Cells: *demoCells, Genes: *demoGenes, Mode: simMode,
			Protein: *demoProtein, Seed: *demoSeed,
		})
	case *loadPath != "":
		d, err = dataset.LoadProcessed(*loadPath)
	case *dir != "":
		d, err = dataset.LoadDir(*dir)
	default:
		fmt.Println("[init] nothing to do: pass -dir, -load or -demo (see -h)")
		os.Exit(2)
	}
	if err != nil {
		fmt.Printf("[load] %v\n", err)
		os.Exit(1)
	}

	if mode == "" {
		if mode, err = d.DetectMode(); err != nil {
			fmt.Printf("[init] %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("[dataset] cells=%d genes=%d mode=%s layers=[%s] run_tag=%s go=%s/%s\n",
		d.NumCells(), d.NumGenes(), mode, strings.Join(d.LayerNames(), ","), tag, runtime.GOOS, runtime.GOARCH)

	if err := runPipeline(context.Background(), d, mode, *fitQuantile, *pcs, *features, *threads); err != nil {
		fmt.Printf("[pipeline] %v\n", err)
		os.Exit(1)
	}

	if err := dataset.SaveProcessed(d, *outFile, tag); err != nil {
		fmt.Printf("[save] %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[save] wrote %s\n", *outFile)
}

// runPipeline derives everything the figures need, printing one summary line
// per stage in the order the stages run.
func runPipeline(ctx context.Context, d *dataset.Dataset, mode dataset.Mode, quantile float64, pcs, features, threads int) error {
	defer dataset.TimeTrack(time.Now(), "pipeline")

	// Category fractions are cheap and catch broken layer splits before any
	// fitting happens.
	if frac, err := kinetics.CategoryFractions(d, mode, ""); err == nil {
		parts := make([]string, 0, len(frac.Categories))
		for _, cat := range frac.Categories {
			parts = append(parts, fmt.Sprintf("%s=%.3f", cat, meanSkipNaN(frac.Values[cat])))
		}
		line := fmt.Sprintf("[fractions] %s", strings.Join(parts, " "))
		if frac.ZeroTotalCells > 0 {
			line += fmt.Sprintf(" zero_total_cells=%d", frac.ZeroTotalCells)
		}
		fmt.Println(line)
	} else {
		dataset.Warnf("category fractions skipped: %v", err)
	}

	if err := kinetics.GeneStats(d, ""); err != nil {
		return err
	}
	if err := kinetics.FitDispersionTrend(d); err != nil {
		return err
	}
	selected, err := kinetics.SelectFeatures(d, features)
	if err != nil {
		return err
	}
	fmt.Printf("[features] selected=%d/%d trend(asymptote=%.3f extra_poisson=%.3f)\n",
		selected, d.NumGenes(), d.DispersionFit.Asymptote, d.DispersionFit.ExtraPoisson)

	res, err := kinetics.SteadyStateFit(ctx, d, mode, kinetics.FitOptions{Quantile: quantile, Workers: threads})
	if err != nil {
		return err
	}
	line := fmt.Sprintf("[fit] genes=%d degenerate=%d quantile=%.1f", res.Genes, res.Degenerate, quantile)
	if res.Proteins > 0 {
		line += fmt.Sprintf(" proteins=%d", res.Proteins)
	}
	fmt.Println(line)

	if err := kinetics.ComputeVelocity(d, mode); err != nil {
		return err
	}
	fmt.Printf("[velocity] layers=[%s]\n", strings.Join(velocityNames(d), ","))

	if err := kinetics.PCA(d, pcs); err != nil {
		return err
	}
	ratios := d.ExplainedVarianceRatio
	elbow := kinetics.FindElbow(ratios, 0, 0)
	cum := 0.0
	for i := 0; i <= elbow && i < len(ratios); i++ {
		cum += ratios[i]
	}
	fmt.Printf("[pca] components=%d elbow=PC%d cumvar_at_elbow=%.3f\n", len(ratios), elbow+1, cum)
	return nil
}

// velocityNames lists the velocity outputs present after derivation.
func velocityNames(d *dataset.Dataset) []string {
	var out []string
	for _, name := range []string{dataset.LayerVelocityS, dataset.LayerVelocityU} {
		if _, ok := d.Layer(name); ok {
			out = append(out, name)
		}
	}
	if _, ok := d.Obsm[dataset.ObsmVelocityProtein]; ok {
		out = append(out, dataset.ObsmVelocityProtein)
	}
	return out
}

// meanSkipNaN averages the finite entries of a slice.
func meanSkipNaN(v []float64) float64 {
	sum, n := 0.0, 0
	for _, x := range v {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
