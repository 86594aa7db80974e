package dataset

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Mode identifies which single-cell protocol produced the layers of a
// dataset. It decides which layer pair a steady-state fit and a phase
// portrait operate on.
type Mode string

const (
	// ModeLabeling covers metabolic labeling experiments: layers "new" and
	// "total".
	ModeLabeling Mode = "labeling"
	// ModeSplicing covers conventional experiments split by splicing state:
	// layers "spliced" and "unspliced" (optionally "ambiguous").
	ModeSplicing Mode = "splicing"
	// ModeFull covers experiments resolving labeling and splicing jointly:
	// layers "uu", "ul", "su", "sl".
	ModeFull Mode = "full"
)

// ParseMode accepts the mode names used on command lines. The alternate
// spelling "labelling" is tolerated.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "labeling", "labelling":
		return ModeLabeling, nil
	case "splicing":
		return ModeSplicing, nil
	case "full":
		return ModeFull, nil
	case "auto", "":
		return "", nil
	}
	return "", fmt.Errorf("unknown mode %q (want labeling, splicing, full or auto)", s)
}

// Canonical layer names.
const (
	LayerNew       = "new"
	LayerTotal     = "total"
	LayerSpliced   = "spliced"
	LayerUnspliced = "unspliced"
	LayerAmbiguous = "ambiguous"
	LayerUU        = "uu"
	LayerUL        = "ul"
	LayerSU        = "su"
	LayerSL        = "sl"
	// Velocity layers written by the kinetics stage.
	LayerVelocityS = "velocity_S"
	LayerVelocityU = "velocity_U"
)

// Multi-dimensional per-cell annotations stored in Obsm.
const (
	ObsmProtein         = "protein"
	ObsmVelocityProtein = "velocity_P"
	ObsmPCA             = "X_pca"
)

// ObsTable holds per-cell annotations: an index of barcodes plus named
// categorical and numeric columns.
type ObsTable struct {
	Index  []string
	Labels map[string][]string
	Values map[string][]float64
}

// NewObsTable returns an empty table for n cells with numbered barcodes.
func NewObsTable(n int) *ObsTable {
	idx := make([]string, n)
	for i := range idx {
		idx[i] = fmt.Sprintf("cell_%d", i)
	}
	return &ObsTable{Index: idx, Labels: map[string][]string{}, Values: map[string][]float64{}}
}

// LabelColumns lists categorical column names in sorted order.
func (o *ObsTable) LabelColumns() []string {
	out := make([]string, 0, len(o.Labels))
	for k := range o.Labels {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValueColumns lists numeric column names in sorted order.
func (o *ObsTable) ValueColumns() []string {
	out := make([]string, 0, len(o.Values))
	for k := range o.Values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// VarTable holds per-gene annotations. Slice columns are either empty (not
// computed yet) or exactly one entry per gene.
type VarTable struct {
	Index []string
	// Steady-state fit results: velocity_S = y - Gamma*x - GammaOffset.
	Gamma       []float64
	GammaOffset []float64
	// Protein fit results (full mode with protein measurements).
	Delta       []float64
	DeltaOffset []float64
	// Feature selection mask and the statistics behind it.
	Selected            []bool
	MeanExpression      []float64
	DispersionEmpirical []float64
	DispersionFitted    []float64
}

// NewVarTable returns an empty table for g genes with numbered names.
func NewVarTable(g int) *VarTable {
	idx := make([]string, g)
	for i := range idx {
		idx[i] = fmt.Sprintf("gene_%d", i)
	}
	return &VarTable{Index: idx}
}

// HasGamma reports whether a steady-state fit has been stored.
func (v *VarTable) HasGamma() bool { return len(v.Gamma) == len(v.Index) && len(v.Index) > 0 }

// HasDelta reports whether a protein fit has been stored.
func (v *VarTable) HasDelta() bool { return len(v.Delta) == len(v.Index) && len(v.Index) > 0 }

// HasDispersion reports whether gene statistics have been stored.
func (v *VarTable) HasDispersion() bool {
	return len(v.MeanExpression) == len(v.Index) && len(v.DispersionEmpirical) == len(v.Index) && len(v.Index) > 0
}

// DispersionFit is the mean-dispersion trend disp(mu) = Asymptote +
// ExtraPoisson/mu estimated over selected-quality genes.
type DispersionFit struct {
	Asymptote    float64 `json:"asymptote"`
	ExtraPoisson float64 `json:"extra_poisson"`
}

// Eval returns the fitted dispersion at mean expression mu.
func (f *DispersionFit) Eval(mu float64) float64 {
	if mu == 0 {
		return math.NaN()
	}
	return f.Asymptote + f.ExtraPoisson/mu
}

// RunMeta describes provenance of a processed dataset file.
type RunMeta struct {
	SchemaVersion int    `json:"schema_version"`
	Generator     string `json:"generator,omitempty"`
	CreatedUTC    string `json:"created_utc,omitempty"`
	RunTag        string `json:"run_tag,omitempty"`
	Mode          string `json:"mode,omitempty"`
}

// Dataset is the annotated expression container every stage operates on:
// a cells-by-genes expression matrix X, kinetic layers of the same shape,
// per-cell and per-gene annotation tables, and multi-dimensional per-cell
// arrays such as embeddings and protein abundance.
type Dataset struct {
	X      Matrix
	Layers map[string]Matrix
	Obs    *ObsTable
	Var    *VarTable
	Obsm   map[string]*mat.Dense

	// ProteinNames labels the columns of the "protein" obsm entry.
	ProteinNames []string

	// ExplainedVarianceRatio is filled by PCA (one entry per component).
	ExplainedVarianceRatio []float64
	// DispersionFit is filled by the gene statistics stage.
	DispersionFit *DispersionFit

	Meta *RunMeta
}

// New builds an empty dataset around an expression matrix.
func New(x Matrix) *Dataset {
	n, g := x.Dims()
	return &Dataset{
		X:      x,
		Layers: map[string]Matrix{},
		Obs:    NewObsTable(n),
		Var:    NewVarTable(g),
		Obsm:   map[string]*mat.Dense{},
	}
}

// NumCells returns the number of rows (cells).
func (d *Dataset) NumCells() int {
	n, _ := d.X.Dims()
	return n
}

// NumGenes returns the number of columns (genes).
func (d *Dataset) NumGenes() int {
	_, g := d.X.Dims()
	return g
}

// Layer looks up a kinetic layer by name.
func (d *Dataset) Layer(name string) (Matrix, bool) {
	m, ok := d.Layers[name]
	return m, ok
}

// LayerNames lists stored layers in sorted order.
func (d *Dataset) LayerNames() []string {
	out := make([]string, 0, len(d.Layers))
	for k := range d.Layers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ObsmNames lists stored multi-dimensional annotations in sorted order.
func (d *Dataset) ObsmNames() []string {
	out := make([]string, 0, len(d.Obsm))
	for k := range d.Obsm {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SetLayer stores a layer after checking its shape against X.
func (d *Dataset) SetLayer(name string, m Matrix) error {
	n, g := d.X.Dims()
	r, c := m.Dims()
	if r != n || c != g {
		return fmt.Errorf("layer %q is %dx%d, dataset is %dx%d", name, r, c, n, g)
	}
	d.Layers[name] = m
	return nil
}

// HasProtein reports whether protein abundance was measured.
func (d *Dataset) HasProtein() bool {
	p, ok := d.Obsm[ObsmProtein]
	return ok && p != nil
}

// DetectMode infers the experiment mode from which layers are present. The
// richest interpretation wins: full before splicing before labeling.
func (d *Dataset) DetectMode() (Mode, error) {
	has := func(names ...string) bool {
		for _, n := range names {
			if _, ok := d.Layers[n]; !ok {
				return false
			}
		}
		return true
	}
	switch {
	case has(LayerUU, LayerUL, LayerSU, LayerSL):
		return ModeFull, nil
	case has(LayerSpliced, LayerUnspliced):
		return ModeSplicing, nil
	case has(LayerNew, LayerTotal):
		return ModeLabeling, nil
	}
	return "", fmt.Errorf("cannot infer experiment mode from layers %v: want new+total (labeling), spliced+unspliced (splicing) or uu+ul+su+sl (full)", d.LayerNames())
}

// GeneIndex resolves gene names against the var index, preserving request
// order. Unknown names are logged and skipped; resolving none is an error.
func (d *Dataset) GeneIndex(names []string) (idx []int, found []string, err error) {
	pos := make(map[string]int, len(d.Var.Index))
	for i, n := range d.Var.Index {
		pos[n] = i
	}
	for _, n := range names {
		i, ok := pos[n]
		if !ok {
			Warnf("gene %q not found in the dataset, skipping", n)
			continue
		}
		idx = append(idx, i)
		found = append(found, n)
	}
	if len(idx) == 0 {
		return nil, nil, fmt.Errorf("none of the %d requested genes are present in the dataset", len(names))
	}
	return idx, found, nil
}

// ExpressionVector extracts the named source restricted to the given gene
// columns as a dense cells-by-genes block. Source is "X", a layer name, or
// "protein" (protein columns are addressed by position, not gene index).
func (d *Dataset) ExpressionVector(source string, geneIdx []int) (*mat.Dense, error) {
	n := d.NumCells()
	var from Matrix
	switch source {
	case "X", "x", "":
		from = d.X
	case ObsmProtein:
		p, ok := d.Obsm[ObsmProtein]
		if !ok {
			return nil, fmt.Errorf("no protein abundance stored in the dataset")
		}
		_, pc := p.Dims()
		out := mat.NewDense(n, len(geneIdx), nil)
		for k, j := range geneIdx {
			if j < 0 || j >= pc {
				return nil, fmt.Errorf("protein column %d out of range (have %d proteins)", j, pc)
			}
			for i := 0; i < n; i++ {
				out.Set(i, k, p.At(i, j))
			}
		}
		return out, nil
	default:
		m, ok := d.Layers[source]
		if !ok {
			return nil, fmt.Errorf("layer %q not found in the dataset (have %v)", source, d.LayerNames())
		}
		from = m
	}
	g := d.NumGenes()
	out := mat.NewDense(n, len(geneIdx), nil)
	col := make([]float64, n)
	for k, j := range geneIdx {
		if j < 0 || j >= g {
			return nil, fmt.Errorf("gene column %d out of range (have %d genes)", j, g)
		}
		col = from.ColumnInto(col, j)
		out.SetCol(k, col)
	}
	return out, nil
}

// Embedding returns two coordinate columns of a stored low-dimensional
// embedding. basis is the short name ("umap" looks up obsm key "X_umap");
// a full obsm key is also accepted.
func (d *Dataset) Embedding(basis string, xCol, yCol int) (xs, ys []float64, err error) {
	key := "X_" + basis
	emb, ok := d.Obsm[key]
	if !ok {
		emb, ok = d.Obsm[basis]
		if !ok {
			return nil, nil, fmt.Errorf("%s embedding is not applied to the dataset yet (no obsm key %q)", basis, key)
		}
	}
	n, c := emb.Dims()
	if xCol < 0 || xCol >= c || yCol < 0 || yCol >= c {
		return nil, nil, fmt.Errorf("embedding %s has %d columns, cannot take (%d,%d)", basis, c, xCol, yCol)
	}
	xs = make([]float64, n)
	ys = make([]float64, n)
	mat.Col(xs, xCol, emb)
	mat.Col(ys, yCol, emb)
	return xs, ys, nil
}

// Validate checks that every layer, annotation table and obsm entry agrees
// with the shape of X.
func (d *Dataset) Validate() error {
	n, g := d.X.Dims()
	if d.Obs == nil || d.Var == nil {
		return fmt.Errorf("dataset is missing obs or var tables")
	}
	if len(d.Obs.Index) != n {
		return fmt.Errorf("obs index has %d entries, dataset has %d cells", len(d.Obs.Index), n)
	}
	if len(d.Var.Index) != g {
		return fmt.Errorf("var index has %d entries, dataset has %d genes", len(d.Var.Index), g)
	}
	for name, col := range d.Obs.Labels {
		if len(col) != n {
			return fmt.Errorf("obs label column %q has %d entries, want %d", name, len(col), n)
		}
	}
	for name, col := range d.Obs.Values {
		if len(col) != n {
			return fmt.Errorf("obs value column %q has %d entries, want %d", name, len(col), n)
		}
	}
	for _, c := range [][]float64{d.Var.Gamma, d.Var.GammaOffset, d.Var.Delta, d.Var.DeltaOffset, d.Var.MeanExpression, d.Var.DispersionEmpirical, d.Var.DispersionFitted} {
		if len(c) != 0 && len(c) != g {
			return fmt.Errorf("var column has %d entries, want %d", len(c), g)
		}
	}
	if len(d.Var.Selected) != 0 && len(d.Var.Selected) != g {
		return fmt.Errorf("var selected mask has %d entries, want %d", len(d.Var.Selected), g)
	}
	for name, m := range d.Layers {
		r, c := m.Dims()
		if r != n || c != g {
			return fmt.Errorf("layer %q is %dx%d, dataset is %dx%d", name, r, c, n, g)
		}
	}
	for name, m := range d.Obsm {
		r, _ := m.Dims()
		if r != n {
			return fmt.Errorf("obsm %q has %d rows, dataset has %d cells", name, r, n)
		}
	}
	return nil
}
