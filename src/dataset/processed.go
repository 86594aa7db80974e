package dataset

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jgbaldwinbrown/csvh"
	"gonum.org/v1/gonum/mat"
)

// SchemaVersion of the processed dataset envelope. Bump when the layout of
// the persisted form changes incompatibly.
const SchemaVersion = 1

// matrixJSON is the persisted form of a layer: dense row-major values, or
// coordinate triplets when the layer is sparse.
type matrixJSON struct {
	Rows   int       `json:"rows"`
	Cols   int       `json:"cols"`
	Dense  []float64 `json:"dense,omitempty"`
	RowIdx []int     `json:"row_idx,omitempty"`
	ColIdx []int     `json:"col_idx,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

type obsJSON struct {
	Index  []string             `json:"index"`
	Labels map[string][]string  `json:"labels,omitempty"`
	Values map[string][]float64 `json:"values,omitempty"`
}

type varJSON struct {
	Index               []string  `json:"index"`
	Gamma               []float64 `json:"gamma,omitempty"`
	GammaOffset         []float64 `json:"gamma_offset,omitempty"`
	Delta               []float64 `json:"delta,omitempty"`
	DeltaOffset         []float64 `json:"delta_offset,omitempty"`
	Selected            []bool    `json:"selected,omitempty"`
	MeanExpression      []float64 `json:"mean_expression,omitempty"`
	DispersionEmpirical []float64 `json:"dispersion_empirical,omitempty"`
	DispersionFitted    []float64 `json:"dispersion_fitted,omitempty"`
}

type datasetJSON struct {
	X                      matrixJSON            `json:"x"`
	Layers                 map[string]matrixJSON `json:"layers,omitempty"`
	Obs                    obsJSON               `json:"obs"`
	Var                    varJSON               `json:"var"`
	Obsm                   map[string]matrixJSON `json:"obsm,omitempty"`
	ProteinNames           []string              `json:"protein_names,omitempty"`
	ExplainedVarianceRatio []float64             `json:"explained_variance_ratio,omitempty"`
	DispersionFit          *DispersionFit        `json:"dispersion_fit,omitempty"`
}

// Envelope wraps a processed dataset with provenance metadata so old files
// are recognized instead of misparsed.
type Envelope struct {
	Meta    *RunMeta    `json:"meta"`
	Dataset datasetJSON `json:"dataset"`
}

func encodeMatrix(m Matrix) matrixJSON {
	r, c := m.Dims()
	out := matrixJSON{Rows: r, Cols: c}
	if m.IsSparse() {
		out.RowIdx, out.ColIdx, out.Values = Triplets(m)
		return out
	}
	raw := m.Dense().RawMatrix()
	out.Dense = make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out.Dense = append(out.Dense, raw.Data[i*raw.Stride:i*raw.Stride+c]...)
	}
	return out
}

func decodeMatrix(mj matrixJSON) (Matrix, error) {
	if mj.Dense != nil {
		return NewDense(mj.Rows, mj.Cols, mj.Dense)
	}
	return NewSparseCOO(mj.Rows, mj.Cols, mj.RowIdx, mj.ColIdx, mj.Values)
}

func encodeDense(m *mat.Dense) matrixJSON {
	r, c := m.Dims()
	out := matrixJSON{Rows: r, Cols: c, Dense: make([]float64, 0, r*c)}
	raw := m.RawMatrix()
	for i := 0; i < r; i++ {
		out.Dense = append(out.Dense, raw.Data[i*raw.Stride:i*raw.Stride+c]...)
	}
	return out
}

func decodeDense(mj matrixJSON) (*mat.Dense, error) {
	if len(mj.Dense) != mj.Rows*mj.Cols {
		return nil, fmt.Errorf("dense block: have %d values for %dx%d", len(mj.Dense), mj.Rows, mj.Cols)
	}
	return mat.NewDense(mj.Rows, mj.Cols, mj.Dense), nil
}

// SaveProcessed writes the dataset as a single JSON envelope (gzipped when
// path ends in .gz). Layers keep their sparse form; fit results and
// embeddings ride along so downstream plotting needs no recomputation.
func SaveProcessed(d *Dataset, path, runTag string) (err error) {
	defer TimeTrack(time.Now(), "save "+path)
	if err := d.Validate(); err != nil {
		return err
	}
	meta := &RunMeta{
		SchemaVersion: SchemaVersion,
		Generator:     "dynamo",
		CreatedUTC:    time.Now().UTC().Format(time.RFC3339),
		RunTag:        runTag,
	}
	if mode, e := d.DetectMode(); e == nil {
		meta.Mode = string(mode)
	}
	env := Envelope{Meta: meta, Dataset: datasetJSON{
		X: encodeMatrix(d.X),
		Obs: obsJSON{
			Index:  d.Obs.Index,
			Labels: d.Obs.Labels,
			Values: d.Obs.Values,
		},
		Var: varJSON{
			Index:               d.Var.Index,
			Gamma:               d.Var.Gamma,
			GammaOffset:         d.Var.GammaOffset,
			Delta:               d.Var.Delta,
			DeltaOffset:         d.Var.DeltaOffset,
			Selected:            d.Var.Selected,
			MeanExpression:      d.Var.MeanExpression,
			DispersionEmpirical: d.Var.DispersionEmpirical,
			DispersionFitted:    d.Var.DispersionFitted,
		},
		ProteinNames:           d.ProteinNames,
		ExplainedVarianceRatio: d.ExplainedVarianceRatio,
		DispersionFit:          d.DispersionFit,
	}}
	if len(d.Layers) > 0 {
		env.Dataset.Layers = map[string]matrixJSON{}
		for name, m := range d.Layers {
			env.Dataset.Layers[name] = encodeMatrix(m)
		}
	}
	if len(d.Obsm) > 0 {
		env.Dataset.Obsm = map[string]matrixJSON{}
		for name, m := range d.Obsm {
			env.Dataset.Obsm[name] = encodeDense(m)
		}
	}

	w, e := csvh.CreateMaybeGz(path)
	if e != nil {
		return e
	}
	defer func() { csvh.DeferE(&err, w.Close()) }()
	return json.NewEncoder(w).Encode(&env)
}

// LoadProcessed reads a dataset envelope written by SaveProcessed. Files
// with a different schema version are rejected rather than guessed at.
func LoadProcessed(path string) (*Dataset, error) {
	defer TimeTrack(time.Now(), "load "+path)
	r, err := csvh.OpenMaybeGz(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if env.Meta == nil {
		return nil, fmt.Errorf("%s: missing meta block", path)
	}
	if env.Meta.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%s: schema version %d, this build reads %d", path, env.Meta.SchemaVersion, SchemaVersion)
	}

	x, err := decodeMatrix(env.Dataset.X)
	if err != nil {
		return nil, fmt.Errorf("%s: x: %w", path, err)
	}
	d := New(x)
	d.Meta = env.Meta
	d.Obs.Index = env.Dataset.Obs.Index
	if env.Dataset.Obs.Labels != nil {
		d.Obs.Labels = env.Dataset.Obs.Labels
	}
	if env.Dataset.Obs.Values != nil {
		d.Obs.Values = env.Dataset.Obs.Values
	}
	d.Var.Index = env.Dataset.Var.Index
	d.Var.Gamma = env.Dataset.Var.Gamma
	d.Var.GammaOffset = env.Dataset.Var.GammaOffset
	d.Var.Delta = env.Dataset.Var.Delta
	d.Var.DeltaOffset = env.Dataset.Var.DeltaOffset
	d.Var.Selected = env.Dataset.Var.Selected
	d.Var.MeanExpression = env.Dataset.Var.MeanExpression
	d.Var.DispersionEmpirical = env.Dataset.Var.DispersionEmpirical
	d.Var.DispersionFitted = env.Dataset.Var.DispersionFitted
	d.ProteinNames = env.Dataset.ProteinNames
	d.ExplainedVarianceRatio = env.Dataset.ExplainedVarianceRatio
	d.DispersionFit = env.Dataset.DispersionFit
	for name, mj := range env.Dataset.Layers {
		m, err := decodeMatrix(mj)
		if err != nil {
			return nil, fmt.Errorf("%s: layer %s: %w", path, name, err)
		}
		if err := d.SetLayer(name, m); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	for name, mj := range env.Dataset.Obsm {
		m, err := decodeDense(mj)
		if err != nil {
			return nil, fmt.Errorf("%s: obsm %s: %w", path, name, err)
		}
		d.Obsm[name] = m
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
