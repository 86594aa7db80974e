package plotting

import (
	"fmt"
	"image"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"github.com/ajinocean/dynamo-release/src/kinetics"
	"gonum.org/v1/gonum/mat"
)

// ScatterType selects what a scatter figure shows.
type ScatterType string

const (
	ScatterEmbedding  ScatterType = "embedding"
	ScatterExpression ScatterType = "expression"
	ScatterVelocity   ScatterType = "velocity"
	ScatterPhase      ScatterType = "phase"
)

// scatterThemeDefault matches each figure kind with the colormap it reads
// best under: sequential green for expression, the dark fire map for
// velocity, viridis for phase planes colored by an annotation.
func scatterThemeDefault(typ ScatterType, colored bool) string {
	switch typ {
	case ScatterExpression:
		return "green"
	case ScatterVelocity:
		return "fire"
	case ScatterPhase:
		if colored {
			return "viridis"
		}
		return "fire"
	}
	return "blue"
}

// ScatterOptions controls the Scatters figure family.
type ScatterOptions struct {
	Type ScatterType  // default "embedding"
	Mode dataset.Mode // layer interpretation; detected when needed

	Basis      string // embedding short name, default "umap"
	XCol, YCol int

	Color         []string // obs columns: facet keys for embedding, point hue for phase
	Genes         []string // genes to facet by (expression, velocity, phase)
	ExpressionKey string   // expression source, default X
	VelocityKey   string   // "S", "U", "P" or a velocity layer name

	Theme  string // default depends on Type
	Legend string // "on data" (default), "right" or "none"

	Columns                 int
	PanelWidth, PanelHeight int
	Alpha                   float64
	PointSize               float64
}

// Scatters renders a grid of scatter panels over a low-dimensional
// embedding: cells colored by annotation, by expression, or by velocity,
// or gene phase planes when Type is "phase". Expression colors saturate at
// the 99th percentile; velocity colors are clipped symmetrically so the
// colormap midpoint stays at zero velocity.
func Scatters(d *dataset.Dataset, opts ScatterOptions) (image.Image, error) {
	typ := opts.Type
	if typ == "" {
		typ = ScatterEmbedding
	}
	switch typ {
	case ScatterEmbedding, ScatterExpression, ScatterVelocity, ScatterPhase:
	default:
		return nil, fmt.Errorf("unknown scatter type %q (choose embedding, expression, velocity or phase)", typ)
	}
	t, err := ThemeByName(first(opts.Theme, scatterThemeDefault(typ, len(opts.Color) > 0)))
	if err != nil {
		return nil, err
	}
	legend := first(opts.Legend, LegendOnData)
	switch legend {
	case LegendOnData, LegendRight, LegendNone:
	default:
		return nil, fmt.Errorf("unknown legend placement %q (choose %q, %q or %q)", legend, LegendOnData, LegendRight, LegendNone)
	}

	w, h := opts.PanelWidth, opts.PanelHeight
	if w <= 0 {
		w = panelSize
	}
	if h <= 0 {
		h = panelSize
	}
	alpha := sanitizeAlpha(opts.Alpha)

	var panels []image.Image
	switch typ {
	case ScatterEmbedding:
		panels, err = embeddingPanels(d, t, opts, legend, alpha, w, h)
	case ScatterExpression:
		panels, err = expressionPanels(d, t, opts, alpha, w, h)
	case ScatterVelocity:
		panels, err = velocityPanels(d, t, opts, alpha, w, h)
	case ScatterPhase:
		panels, err = phasePanels(d, t, opts, legend, alpha, w, h)
	}
	if err != nil {
		return nil, err
	}

	cols := opts.Columns
	if cols <= 0 {
		cols = gridColumns(len(panels))
	}
	return composeGrid(panels, cols, t.Background), nil
}

// embeddingPanels builds one panel per requested obs column, or a single
// uncolored panel when none are named.
func embeddingPanels(d *dataset.Dataset, t *Theme, opts ScatterOptions, legend string, alpha uint8, w, h int) ([]image.Image, error) {
	basis := first(opts.Basis, "umap")
	xs, ys, err := d.Embedding(basis, opts.XCol, opts.YCol)
	if err != nil {
		return nil, err
	}
	radius := opts.PointSize

	if len(opts.Color) == 0 {
		col := t.ColorKey(1)[0]
		col.A = alpha
		spec := embeddingSpec{
			title: basis, xName: basis + "_1", yName: basis + "_2",
			xs: xs, ys: ys, radius: radius, legend: LegendNone,
			classes: []embeddingClass{{xs: xs, ys: ys, col: col}},
		}
		return []image.Image{renderEmbedding(t, spec, w, h)}, nil
	}

	var panels []image.Image
	for _, key := range opts.Color {
		spec := embeddingSpec{
			title: key, xName: basis + "_1", yName: basis + "_2",
			xs: xs, ys: ys, legend: legend, radius: radius,
		}
		if labels, ok := d.Obs.Labels[key]; ok {
			spec.classes = classesFromLabels(t, labels, xs, ys, alpha)
		} else if vals, ok := d.Obs.Values[key]; ok {
			spec.pointColors = colorsFromValues(t, kinetics.MinMaxScale(vals), alpha)
		} else {
			return nil, fmt.Errorf("obs column %q not found (categorical: %v, numeric: %v)",
				key, d.Obs.LabelColumns(), d.Obs.ValueColumns())
		}
		panels = append(panels, renderEmbedding(t, spec, w, h))
	}
	return panels, nil
}

// expressionPanels builds one embedding panel per gene, colored by the
// chosen expression source.
func expressionPanels(d *dataset.Dataset, t *Theme, opts ScatterOptions, alpha uint8, w, h int) ([]image.Image, error) {
	if len(opts.Genes) == 0 {
		return nil, fmt.Errorf("expression scatters need at least one gene")
	}
	basis := first(opts.Basis, "umap")
	xs, ys, err := d.Embedding(basis, opts.XCol, opts.YCol)
	if err != nil {
		return nil, err
	}
	idx, found, err := d.GeneIndex(opts.Genes)
	if err != nil {
		return nil, err
	}
	expr, err := d.ExpressionVector(first(opts.ExpressionKey, "X"), idx)
	if err != nil {
		return nil, err
	}
	panels := make([]image.Image, len(idx))
	for k := range idx {
		vals := kinetics.SaturateAtPercentile(colVals(expr, k), 99)
		panels[k] = renderEmbedding(t, embeddingSpec{
			title: found[k], xName: basis + "_1", yName: basis + "_2",
			xs: xs, ys: ys,
			pointColors: colorsFromValues(t, vals, alpha),
			radius:      opts.PointSize,
		}, w, h)
	}
	return panels, nil
}

// velocityPanels builds one embedding panel per gene, colored by its
// velocity with a symmetric 1/99 percentile clip.
func velocityPanels(d *dataset.Dataset, t *Theme, opts ScatterOptions, alpha uint8, w, h int) ([]image.Image, error) {
	if len(opts.Genes) == 0 {
		return nil, fmt.Errorf("velocity scatters need at least one gene")
	}
	basis := first(opts.Basis, "umap")
	xs, ys, err := d.Embedding(basis, opts.XCol, opts.YCol)
	if err != nil {
		return nil, err
	}
	idx, found, err := d.GeneIndex(opts.Genes)
	if err != nil {
		return nil, err
	}
	source, isProtein, err := resolveVelocitySource(d, opts.VelocityKey)
	if err != nil {
		return nil, err
	}

	var panels []image.Image
	if isProtein {
		pv := d.Obsm[dataset.ObsmVelocityProtein]
		_, np := pv.Dims()
		for k, j := range idx {
			if j >= np {
				dataset.Warnf("gene %q has no measured protein, skipping", found[k])
				continue
			}
			vals := kinetics.SymmetricClip(colVals(pv, j), 1, 99)
			panels = append(panels, renderEmbedding(t, embeddingSpec{
				title: found[k], xName: basis + "_1", yName: basis + "_2",
				xs: xs, ys: ys,
				pointColors: colorsFromValues(t, vals, alpha),
				radius:      opts.PointSize,
			}, w, h))
		}
		if len(panels) == 0 {
			return nil, fmt.Errorf("none of the requested genes have protein velocities")
		}
		return panels, nil
	}

	vel, err := d.ExpressionVector(source, idx)
	if err != nil {
		return nil, err
	}
	for k := range idx {
		vals := kinetics.SymmetricClip(colVals(vel, k), 1, 99)
		panels = append(panels, renderEmbedding(t, embeddingSpec{
			title: found[k], xName: basis + "_1", yName: basis + "_2",
			xs: xs, ys: ys,
			pointColors: colorsFromValues(t, vals, alpha),
			radius:      opts.PointSize,
		}, w, h))
	}
	return panels, nil
}

// phasePanels builds one phase plane per gene with its steady-state line,
// plus a protein phase plane for genes with a measured protein.
func phasePanels(d *dataset.Dataset, t *Theme, opts ScatterOptions, legend string, alpha uint8, w, h int) ([]image.Image, error) {
	if len(opts.Genes) == 0 {
		return nil, fmt.Errorf("phase scatters need at least one gene")
	}
	mode := opts.Mode
	var err error
	if mode == "" {
		if mode, err = d.DetectMode(); err != nil {
			return nil, err
		}
	}
	if !d.Var.HasGamma() {
		return nil, fmt.Errorf("no gamma column stored; run the steady-state fit before plotting phase planes")
	}
	idx, found, err := d.GeneIndex(opts.Genes)
	if err != nil {
		return nil, err
	}
	phaseX, phaseY, xLabel, yLabel, err := kinetics.PhaseSources(d, mode)
	if err != nil {
		return nil, err
	}
	expr, err := d.ExpressionVector(first(opts.ExpressionKey, "X"), idx)
	if err != nil {
		return nil, err
	}
	// An annotation colors the points when given, expression otherwise.
	var labels []string
	if len(opts.Color) > 0 {
		var ok bool
		labels, ok = d.Obs.Labels[opts.Color[0]]
		if !ok {
			return nil, fmt.Errorf("obs column %q not found (categorical columns: %v)",
				opts.Color[0], d.Obs.LabelColumns())
		}
	}
	if legend == LegendOnData {
		// Label medians mean little on a phase plane; use the boxed legend.
		legend = LegendRight
	}

	// Genes with a measured protein get a second plane with the delta fit.
	np := 0
	var proteinMat, splicedMat *mat.Dense
	if mode == dataset.ModeFull && d.HasProtein() && d.Var.HasDelta() {
		proteinMat = d.Obsm[dataset.ObsmProtein]
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

	n := d.NumCells()
	xs := make([]float64, n)
	ys := make([]float64, n)
	var panels []image.Image
	for k, j := range idx {
		xs = phaseX.ColumnInto(xs, j)
		ys = phaseY.ColumnInto(ys, j)
		spec := phaseSpec{
			title: found[k], xName: xLabel, yName: yLabel,
			xs: append([]float64(nil), xs...), ys: append([]float64(nil), ys...),
			slope: d.Var.Gamma[j], intercept: d.Var.GammaOffset[j],
			legend: legend, radius: opts.PointSize,
		}
		if labels != nil {
			spec.classes = classesFromLabels(t, labels, spec.xs, spec.ys, alpha)
		} else {
			spec.pointColors = colorsFromValues(t, kinetics.MinMaxScale(colVals(expr, k)), alpha)
		}
		panels = append(panels, renderPhase(t, spec, w, h))

		if proteinMat == nil || j >= np {
			continue
		}
		pxs := make([]float64, n)
		mat.Col(pxs, j, proteinMat)
		pname := "protein"
		if j < len(d.ProteinNames) {
			pname = d.ProteinNames[j]
		}
		pspec := phaseSpec{
			title: found[k] + " protein", xName: pname, yName: "spliced",
			xs: pxs, ys: colVals(splicedMat, j),
			slope: d.Var.Delta[j], intercept: d.Var.DeltaOffset[j],
			legend: legend, radius: opts.PointSize,
		}
		if labels != nil {
			pspec.classes = classesFromLabels(t, labels, pxs, pspec.ys, alpha)
		} else {
			pspec.pointColors = colorsFromValues(t, kinetics.MinMaxScale(pxs), alpha)
		}
		panels = append(panels, renderPhase(t, pspec, w, h))
	}
	return panels, nil
}

// gridColumns picks a near-square grid for n panels, capped at four across.
func gridColumns(n int) int {
	switch {
	case n <= 1:
		return 1
	case n <= 4:
		return 2
	case n <= 9:
		return 3
	}
	return 4
}
