package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jgbaldwinbrown/csvh"
	"gonum.org/v1/gonum/mat"
)

// Layer stems recognized inside a dataset directory, in load order.
var layerStems = []string{
	"x", LayerNew, LayerTotal, LayerSpliced, LayerUnspliced, LayerAmbiguous,
	LayerUU, LayerUL, LayerSU, LayerSL, LayerVelocityS, LayerVelocityU,
}

// Embedding stems recognized inside a dataset directory.
var embeddingStems = []string{"umap", "tsne", "pca", "trimap"}

// findFile returns the existing path among base and base.gz, or "".
func findFile(dir, base string) string {
	for _, cand := range []string{base, base + ".gz"} {
		p := filepath.Join(dir, cand)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

func readTSV(path string) ([][]string, error) {
	r, err := csvh.OpenMaybeGz(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	cr := csvh.CsvIn(r)
	var rows [][]string
	for l, e := cr.Read(); e != io.EOF; l, e = cr.Read() {
		if e != nil {
			return nil, fmt.Errorf("%s: %w", path, e)
		}
		row := make([]string, len(l))
		copy(row, l)
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadDir reads a dataset from a directory of matrix-market layers plus
// genes.tsv and barcodes.tsv, the layout droplet pipelines export. Every
// file may carry a .gz suffix. Matrices stored genes-by-cells are
// transposed on load.
//
// Optional files: obs.tsv (per-cell annotations with a header row),
// protein.tsv (per-cell protein abundance with a header row) and one TSV
// per embedding (umap.tsv, tsne.tsv, pca.tsv, trimap.tsv).
func LoadDir(dir string) (*Dataset, error) {
	defer TimeTrack(time.Now(), "load "+dir)

	genesPath := findFile(dir, "genes.tsv")
	if genesPath == "" {
		return nil, fmt.Errorf("load %s: genes.tsv not found", dir)
	}
	barcodesPath := findFile(dir, "barcodes.tsv")
	if barcodesPath == "" {
		return nil, fmt.Errorf("load %s: barcodes.tsv not found", dir)
	}
	geneRows, err := readTSV(genesPath)
	if err != nil {
		return nil, err
	}
	genes := make([]string, 0, len(geneRows))
	for _, row := range geneRows {
		if len(row) == 0 {
			continue
		}
		// 10x genes.tsv carries id and symbol; prefer the symbol.
		name := row[0]
		if len(row) > 1 && row[1] != "" {
			name = row[1]
		}
		genes = append(genes, name)
	}
	barcodeRows, err := readTSV(barcodesPath)
	if err != nil {
		return nil, err
	}
	barcodes := make([]string, 0, len(barcodeRows))
	for _, row := range barcodeRows {
		if len(row) > 0 {
			barcodes = append(barcodes, row[0])
		}
	}
	if len(genes) == 0 || len(barcodes) == 0 {
		return nil, fmt.Errorf("load %s: empty genes or barcodes table", dir)
	}
	n, g := len(barcodes), len(genes)

	layers := map[string]Matrix{}
	for _, stem := range layerStems {
		path := findFile(dir, stem+".mtx")
		if path == "" {
			continue
		}
		m, err := loadLayerFile(path, n, g)
		if err != nil {
			return nil, err
		}
		layers[stem] = m
		Debugf("[load] layer %s: %d non-zeros", stem, m.NNZ())
	}

	var x Matrix
	if m, ok := layers["x"]; ok {
		x = m
		delete(layers, "x")
	} else {
		x, err = fallbackX(layers, n, g)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", dir, err)
		}
	}

	d := New(x)
	d.Obs.Index = barcodes
	d.Var.Index = genes
	for name, m := range layers {
		if err := d.SetLayer(name, m); err != nil {
			return nil, fmt.Errorf("load %s: %w", dir, err)
		}
	}

	if path := findFile(dir, "obs.tsv"); path != "" {
		if err := loadObsFile(d, path); err != nil {
			return nil, err
		}
	}
	if path := findFile(dir, "protein.tsv"); path != "" {
		if err := loadProteinFile(d, path); err != nil {
			return nil, err
		}
	}
	for _, stem := range embeddingStems {
		path := findFile(dir, stem+".tsv")
		if path == "" {
			continue
		}
		emb, err := loadEmbeddingFile(path, n)
		if err != nil {
			return nil, err
		}
		d.Obsm["X_"+stem] = emb
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	Infof("[load] %s: %d cells x %d genes, layers %v", dir, n, g, d.LayerNames())
	return d, nil
}

// loadLayerFile reads one matrix-market file and orients it cells-by-genes.
func loadLayerFile(path string, n, g int) (Matrix, error) {
	r, err := csvh.OpenMaybeGz(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	rows, cols, ri, ci, vals, err := readTriplets(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	switch {
	case rows == n && cols == g:
		return NewSparseCOO(n, g, ri, ci, vals)
	case rows == g && cols == n:
		// Stored genes-by-cells; swap the triplets.
		return NewSparseCOO(n, g, ci, ri, vals)
	}
	return nil, fmt.Errorf("%s: matrix is %dx%d, want %dx%d or its transpose", path, rows, cols, n, g)
}

// fallbackX synthesizes X when no x.mtx is present: the total layer when
// counting labeled transcripts, spliced counts otherwise, or the sum of the
// four full-mode layers.
func fallbackX(layers map[string]Matrix, n, g int) (Matrix, error) {
	if m, ok := layers[LayerTotal]; ok {
		return m, nil
	}
	if m, ok := layers[LayerSpliced]; ok {
		return m, nil
	}
	parts := []string{LayerUU, LayerUL, LayerSU, LayerSL}
	var ri, ci []int
	var vals []float64
	found := 0
	for _, name := range parts {
		m, ok := layers[name]
		if !ok {
			continue
		}
		found++
		r2, c2, v2 := Triplets(m)
		ri = append(ri, r2...)
		ci = append(ci, c2...)
		vals = append(vals, v2...)
	}
	if found != len(parts) {
		return nil, fmt.Errorf("no x.mtx and no layer to derive X from (want total, spliced, or uu+ul+su+sl)")
	}
	// Duplicate triplets across the four layers sum during CSR assembly.
	return NewSparseCOO(n, g, ri, ci, vals)
}

// loadObsFile parses per-cell annotations. The header names the columns; a
// leading barcode/index column replaces the default cell index. Columns
// where every value parses as a number load as numeric, all others as
// categorical.
func loadObsFile(d *Dataset, path string) error {
	rows, err := readTSV(path)
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return fmt.Errorf("%s: want a header plus one row per cell", path)
	}
	header := rows[0]
	body := rows[1:]
	if len(body) != d.NumCells() {
		return fmt.Errorf("%s: %d rows for %d cells", path, len(body), d.NumCells())
	}
	for c, name := range header {
		col := make([]string, len(body))
		for i, row := range body {
			if c >= len(row) {
				return fmt.Errorf("%s: row %d has %d fields, header has %d", path, i+2, len(row), len(header))
			}
			col[i] = row[c]
		}
		lower := strings.ToLower(name)
		if c == 0 && (lower == "" || lower == "index" || lower == "barcode" || lower == "cell_id") {
			d.Obs.Index = col
			continue
		}
		if nums, ok := parseAllFloats(col); ok {
			d.Obs.Values[name] = nums
		} else {
			d.Obs.Labels[name] = col
		}
	}
	return nil
}

func parseAllFloats(col []string) ([]float64, bool) {
	out := make([]float64, len(col))
	for i, s := range col {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// loadProteinFile parses cells-by-proteins abundance with protein names in
// the header.
func loadProteinFile(d *Dataset, path string) error {
	rows, err := readTSV(path)
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return fmt.Errorf("%s: want a header plus one row per cell", path)
	}
	names := rows[0]
	body := rows[1:]
	if len(body) != d.NumCells() {
		return fmt.Errorf("%s: %d rows for %d cells", path, len(body), d.NumCells())
	}
	p := mat.NewDense(len(body), len(names), nil)
	for i, row := range body {
		if len(row) != len(names) {
			return fmt.Errorf("%s: row %d has %d fields, header has %d", path, i+2, len(row), len(names))
		}
		for j, s := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return fmt.Errorf("%s: row %d column %q: %w", path, i+2, names[j], err)
			}
			p.Set(i, j, v)
		}
	}
	d.Obsm[ObsmProtein] = p
	d.ProteinNames = names
	return nil
}

// loadEmbeddingFile parses an embedding TSV (one row per cell, no header).
func loadEmbeddingFile(path string, n int) (*mat.Dense, error) {
	rows, err := readTSV(path)
	if err != nil {
		return nil, err
	}
	if len(rows) != n {
		return nil, fmt.Errorf("%s: %d rows for %d cells", path, len(rows), n)
	}
	cols := len(rows[0])
	if cols < 2 {
		return nil, fmt.Errorf("%s: want at least 2 coordinate columns, got %d", path, cols)
	}
	emb := mat.NewDense(n, cols, nil)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%s: row %d has %d fields, want %d", path, i+1, len(row), cols)
		}
		for j, s := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", path, i+1, err)
			}
			emb.Set(i, j, v)
		}
	}
	return emb, nil
}

// SaveDir writes the dataset back as a directory of gzipped matrix-market
// layers and TSV tables, the inverse of LoadDir.
func SaveDir(d *Dataset, dir string) error {
	defer TimeTrack(time.Now(), "save "+dir)
	if err := d.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	writeMatrix := func(stem string, m Matrix) (err error) {
		w, e := csvh.CreateMaybeGz(filepath.Join(dir, stem+".mtx.gz"))
		if e != nil {
			return e
		}
		defer func() { csvh.DeferE(&err, w.Close()) }()
		return WriteMatrixMarket(w, m)
	}
	if err := writeMatrix("x", d.X); err != nil {
		return err
	}
	for _, name := range d.LayerNames() {
		if err := writeMatrix(name, d.Layers[name]); err != nil {
			return err
		}
	}

	writeRows := func(base string, rows [][]string) (err error) {
		w, e := csvh.CreateMaybeGz(filepath.Join(dir, base+".gz"))
		if e != nil {
			return e
		}
		defer func() { csvh.DeferE(&err, w.Close()) }()
		cw := csv.NewWriter(w)
		cw.Comma = '\t'
		for _, row := range rows {
			if e := cw.Write(row); e != nil {
				return e
			}
		}
		cw.Flush()
		return cw.Error()
	}

	geneRows := make([][]string, len(d.Var.Index))
	for i, name := range d.Var.Index {
		geneRows[i] = []string{name, name}
	}
	if err := writeRows("genes.tsv", geneRows); err != nil {
		return err
	}
	cellRows := make([][]string, len(d.Obs.Index))
	for i, name := range d.Obs.Index {
		cellRows[i] = []string{name}
	}
	if err := writeRows("barcodes.tsv", cellRows); err != nil {
		return err
	}

	if len(d.Obs.Labels) > 0 || len(d.Obs.Values) > 0 {
		header := []string{"barcode"}
		header = append(header, d.Obs.LabelColumns()...)
		header = append(header, d.Obs.ValueColumns()...)
		rows := [][]string{header}
		for i, bc := range d.Obs.Index {
			row := []string{bc}
			for _, c := range d.Obs.LabelColumns() {
				row = append(row, d.Obs.Labels[c][i])
			}
			for _, c := range d.Obs.ValueColumns() {
				row = append(row, strconv.FormatFloat(d.Obs.Values[c][i], 'g', -1, 64))
			}
			rows = append(rows, row)
		}
		if err := writeRows("obs.tsv", rows); err != nil {
			return err
		}
	}

	if p, ok := d.Obsm[ObsmProtein]; ok {
		_, pc := p.Dims()
		names := d.ProteinNames
		if len(names) != pc {
			names = make([]string, pc)
			for j := range names {
				names[j] = fmt.Sprintf("protein_%d", j)
			}
		}
		rows := [][]string{names}
		for i := 0; i < d.NumCells(); i++ {
			row := make([]string, pc)
			for j := 0; j < pc; j++ {
				row[j] = strconv.FormatFloat(p.At(i, j), 'g', -1, 64)
			}
			rows = append(rows, row)
		}
		if err := writeRows("protein.tsv", rows); err != nil {
			return err
		}
	}

	for _, stem := range embeddingStems {
		emb, ok := d.Obsm["X_"+stem]
		if !ok {
			continue
		}
		r, c := emb.Dims()
		rows := make([][]string, r)
		for i := 0; i < r; i++ {
			row := make([]string, c)
			for j := 0; j < c; j++ {
				row[j] = strconv.FormatFloat(emb.At(i, j), 'g', -1, 64)
			}
			rows[i] = row
		}
		if err := writeRows(stem+".tsv", rows); err != nil {
			return err
		}
	}
	Infof("[save] %s: wrote %d layers and annotation tables", dir, 1+len(d.Layers))
	return nil
}
