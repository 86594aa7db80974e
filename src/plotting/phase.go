package plotting

import (
	"fmt"
	"image"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/kinetics"
	"gonum.org/v1/gonum/mat"
)

// PhaseOptions controls the phase portrait figure.
type PhaseOptions struct {
	Mode dataset.Mode // layer interpretation; detected when empty

	Basis      string // embedding short name, default "umap"
	XCol, YCol int    // embedding coordinate columns

	Color         string // categorical obs column for the phase panel; empty colors by expression
	ExpressionKey string // source for the expression panel, default X
	VelocityKey   string // "S", "U" or a velocity layer name, default "S"

	Theme     string  // default "blue"
	Columns   int     // panel grid width, default 6
	PanelSize int     // square panel edge in pixels
	Alpha     float64 // point opacity in (0,1]
}

// PhasePortraits renders one row of panels per gene: the phase plane with
// the fitted steady-state line, the embedding colored by expression, and the
// embedding colored by velocity. Genes with a measured protein get a second
// trio with the protein fit. The velocity layer is computed on the fly when
// a gamma fit is stored but velocities are not.
func PhasePortraits(d *dataset.Dataset, genes []string, opts PhaseOptions) (image.Image, error) {
	t, err := ThemeByName(first(opts.Theme, "blue"))
	if err != nil {
		return nil, err
	}
	mode := opts.Mode
	if mode == "" {
		if mode, err = d.DetectMode(); err != nil {
			return nil, err
		}
	}
	if !d.Var.HasGamma() {
		return nil, fmt.Errorf("no gamma column stored; run the steady-state fit before plotting phase portraits")
	}
	idx, found, err := d.GeneIndex(genes)
	if err != nil {
		return nil, err
	}
	if _, ok := d.Layer(dataset.LayerVelocityS); !ok {
		if err := kinetics.ComputeVelocity(d, mode); err != nil {
			return nil, err
		}
	}
	velSource, isProtein, err := resolveVelocitySource(d, opts.VelocityKey)
	if err != nil {
		return nil, err
	}
	if isProtein {
		return nil, fmt.Errorf("velocity key %q selects the protein velocity; the gene panels need S or U", opts.VelocityKey)
	}

	phaseX, phaseY, xLabel, yLabel, err := kinetics.PhaseSources(d, mode)
	if err != nil {
		return nil, err
	}
	ekey := first(opts.ExpressionKey, "X")
	expr, err := d.ExpressionVector(ekey, idx)
	if err != nil {
		return nil, err
	}
	vel, err := d.ExpressionVector(velSource, idx)
	if err != nil {
		return nil, err
	}
	basis := first(opts.Basis, "umap")
	embX, embY, err := d.Embedding(basis, opts.XCol, opts.YCol)
	if err != nil {
		return nil, err
	}

	var labels []string
	if opts.Color != "" {
		var ok bool
		labels, ok = d.Obs.Labels[opts.Color]
		if !ok {
			return nil, fmt.Errorf("obs column %q not found (categorical columns: %v)", opts.Color, d.Obs.LabelColumns())
		}
	}

	// Protein panels apply per gene: protein column j measures gene j, so
	// only the leading np gene columns of the spliced pool are needed.
	var proteinMat, proteinVel, splicedMat *mat.Dense
	np := 0
	if mode == dataset.ModeFull && d.HasProtein() && d.Var.HasDelta() {
		proteinMat = d.Obsm[dataset.ObsmProtein]
		proteinVel = d.Obsm[dataset.ObsmVelocityProtein]
		_, np = proteinMat.Dims()
		su, err := d.ExpressionVector(dataset.LayerSU, allColumns(np))
		if err != nil {
			return nil, err
		}
		sl, err := d.ExpressionVector(dataset.LayerSL, allColumns(np))
		if err != nil {
			return nil, err
		}
		splicedMat = mat.NewDense(d.NumCells(), np, nil)
		splicedMat.Add(su, sl)
	}

	alpha := sanitizeAlpha(opts.Alpha)
	size := opts.PanelSize
	if size <= 0 {
		size = panelSize
	}
	n := d.NumCells()
	var panels []image.Image
	xs := make([]float64, n)
	ys := make([]float64, n)
	for k, j := range idx {
		name := found[k]
		xs = phaseX.ColumnInto(xs, j)
		ys = phaseY.ColumnInto(ys, j)
		exprCol := colVals(expr, k)
		velCol := colVals(vel, k)

		spec := phaseSpec{
			title: name, xName: xLabel, yName: yLabel,
			xs: append([]float64(nil), xs...), ys: append([]float64(nil), ys...),
			slope: d.Var.Gamma[j], intercept: d.Var.GammaOffset[j],
		}
		if labels != nil {
			spec.classes = classesFromLabels(t, labels, spec.xs, spec.ys, alpha)
			spec.legend = LegendNone
		} else {
			spec.pointColors = colorsFromValues(t, kinetics.MinMaxScale(exprCol), alpha)
		}
		panels = append(panels, renderPhase(t, spec, size, size))

		panels = append(panels, renderEmbedding(t, embeddingSpec{
			title: fmt.Sprintf("%s (%s)", name, ekey),
			xName: basis + "_1", yName: basis + "_2",
			xs: embX, ys: embY,
			pointColors: colorsFromValues(t, kinetics.SaturateAtPercentile(exprCol, 99), alpha),
		}, size, size))

		panels = append(panels, renderEmbedding(t, embeddingSpec{
			title: fmt.Sprintf("%s (%s)", name, velSource),
			xName: basis + "_1", yName: basis + "_2",
			xs: embX, ys: embY,
			pointColors: colorsFromValues(t, kinetics.SymmetricClip(velCol, 1, 99), alpha),
		}, size, size))

		if proteinMat == nil || j >= np {
			continue
		}
		pxs := make([]float64, n)
		mat.Col(pxs, j, proteinMat)
		sys := colVals(splicedMat, j)
		pname := "protein"
		if j < len(d.ProteinNames) {
			pname = d.ProteinNames[j]
		}
		pspec := phaseSpec{
			title: name + " protein", xName: pname, yName: "spliced",
			xs: pxs, ys: sys,
			slope: d.Var.Delta[j], intercept: d.Var.DeltaOffset[j],
		}
		if labels != nil {
			pspec.classes = classesFromLabels(t, labels, pxs, pspec.ys, alpha)
			pspec.legend = LegendNone
		} else {
			pspec.pointColors = colorsFromValues(t, kinetics.MinMaxScale(pxs), alpha)
		}
		panels = append(panels, renderPhase(t, pspec, size, size))

		panels = append(panels, renderEmbedding(t, embeddingSpec{
			title: fmt.Sprintf("%s (protein expression)", name),
			xName: basis + "_1", yName: basis + "_2",
			xs: embX, ys: embY,
			pointColors: colorsFromValues(t, kinetics.SaturateAtPercentile(pxs, 99), alpha),
		}, size, size))

		if proteinVel != nil {
			pv := make([]float64, n)
			mat.Col(pv, j, proteinVel)
			panels = append(panels, renderEmbedding(t, embeddingSpec{
				title: fmt.Sprintf("%s (protein velocity)", name),
				xName: basis + "_1", yName: basis + "_2",
				xs: embX, ys: embY,
				pointColors: colorsFromValues(t, kinetics.SymmetricClip(pv, 1, 99), alpha),
			}, size, size))
		}
	}

	cols := opts.Columns
	if cols <= 0 {
		cols = 6
	}
	return composeGrid(panels, cols, t.Background), nil
}

// colVals copies one column of a dense block.
func colVals(m *mat.Dense, j int) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	mat.Col(out, j, m)
	return out
}

// allColumns lists 0..g-1, for pulling a whole layer through the gene
// extraction path.
func allColumns(g int) []int {
	out := make([]int, g)
	for i := range out {
		out[i] = i
	}
	return out
}

// first returns s unless empty.
func first(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
