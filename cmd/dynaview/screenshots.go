package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/plotting"
)

// RunScreenshotsMode renders the standard figure set into outDir without
// opening a window. Backs the -screenshots flag and documentation builds.
func RunScreenshotsMode(filePath, outDir, genesCSV, themeName string, columns int, hints bool) error {
	if filePath == "" {
		filePath = "processed.json.gz"
	}
	d, err := dataset.LoadProcessed(filePath)
	if err != nil {
		return fmt.Errorf("load %s: %w", filePath, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	state := &uiState{
		filePath:  filePath,
		data:      d,
		themeName: themeName,
		legend:    plotting.LegendOnData,
		genesCSV:  genesCSV,
		columns:   columns,
		showHints: hints,
	}
	if m, derr := d.DetectMode(); derr == nil {
		state.mode = m
	}
	if strings.TrimSpace(state.genesCSV) == "" {
		state.genesCSV = strings.Join(defaultGenes(d, 2), ",")
	}

	toRender := []struct {
		name string
		fn   func(*uiState) image.Image
	}{
		{"fractions.png", renderFractionsFigure},
		{"variance.png", renderVarianceFigure},
		{"feature_genes.png", renderFeaturesFigure},
		{"phase.png", renderPhaseFigure},
		{"scatter_embedding.png", scatterRenderer("embedding")},
		{"scatter_expression.png", scatterRenderer("expression")},
		{"scatter_velocity.png", scatterRenderer("velocity")},
		{"scatter_phase.png", scatterRenderer("phase")},
	}

	// Render serially: some figures backfill derived columns on first use,
	// so concurrent renders would race on the dataset.
	type rendered struct {
		name string
		img  image.Image
	}
	var figs []rendered
	for _, r := range toRender {
		st := *state
		img := r.fn(&st)
		if img == nil {
			fmt.Printf("[screenshots] skip %s: figure unavailable for this file\n", r.name)
			continue
		}
		figs = append(figs, rendered{r.name, img})
	}

	// PNG compression dominates the runtime; encode and write concurrently.
	var g errgroup.Group
	for _, f := range figs {
		f := f
		g.Go(func() error {
			out, err := os.Create(filepath.Join(outDir, f.name))
			if err != nil {
				return err
			}
			defer out.Close()
			if err := png.Encode(out, f.img); err != nil {
				return fmt.Errorf("encode %s: %w", f.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Printf("[screenshots] wrote %d figures to %s\n", len(figs), outDir)
	return nil
}

// scatterRenderer fixes the scatter figure kind on a state copy.
func scatterRenderer(typ string) func(*uiState) image.Image {
	return func(st *uiState) image.Image {
		st.scatterType = typ
		return renderScatterFigure(st)
	}
}
