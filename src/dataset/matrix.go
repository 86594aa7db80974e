package dataset

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// Matrix is the storage abstraction shared by X and all kinetic layers.
// Implementations are either dense (gonum) or CSR sparse (james-bowman);
// plotting and fitting code converts to dense vectors only at the boundary,
// mirroring how the layers are consumed.
type Matrix interface {
	Dims() (rows, cols int)
	At(i, j int) float64
	// ColumnInto extracts column j into dst (allocated when nil or wrong size).
	ColumnInto(dst []float64, j int) []float64
	// RowSums accumulates each row's total into dst (allocated when nil or wrong size).
	RowSums(dst []float64) []float64
	// Dense materializes the full matrix. Dense implementations return the
	// backing matrix without copying.
	Dense() *mat.Dense
	IsSparse() bool
	// NNZ reports stored non-zero entries (rows*cols for dense).
	NNZ() int
}

// DenseMatrix wraps a gonum dense matrix as a layer.
type DenseMatrix struct {
	m *mat.Dense
}

// NewDense builds a dense layer from row-major data. data may be nil for a
// zero matrix; otherwise len(data) must equal rows*cols.
func NewDense(rows, cols int, data []float64) (*DenseMatrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("dense layer: invalid shape %dx%d", rows, cols)
	}
	if data != nil && len(data) != rows*cols {
		return nil, fmt.Errorf("dense layer: have %d values, shape %dx%d needs %d", len(data), rows, cols, rows*cols)
	}
	return &DenseMatrix{m: mat.NewDense(rows, cols, data)}, nil
}

// WrapDense adopts an existing gonum matrix without copying.
func WrapDense(m *mat.Dense) *DenseMatrix { return &DenseMatrix{m: m} }

func (d *DenseMatrix) Dims() (int, int)    { return d.m.Dims() }
func (d *DenseMatrix) At(i, j int) float64 { return d.m.At(i, j) }
func (d *DenseMatrix) Dense() *mat.Dense   { return d.m }
func (d *DenseMatrix) IsSparse() bool      { return false }

// Set writes a single entry. Only dense layers are mutable in place.
func (d *DenseMatrix) Set(i, j int, v float64) { d.m.Set(i, j, v) }

func (d *DenseMatrix) NNZ() int {
	r, c := d.m.Dims()
	return r * c
}

func (d *DenseMatrix) ColumnInto(dst []float64, j int) []float64 {
	r, _ := d.m.Dims()
	if len(dst) != r {
		dst = make([]float64, r)
	}
	mat.Col(dst, j, d.m)
	return dst
}

func (d *DenseMatrix) RowSums(dst []float64) []float64 {
	r, c := d.m.Dims()
	if len(dst) != r {
		dst = make([]float64, r)
	}
	raw := d.m.RawMatrix()
	for i := 0; i < r; i++ {
		s := 0.0
		row := raw.Data[i*raw.Stride : i*raw.Stride+c]
		for _, v := range row {
			s += v
		}
		dst[i] = s
	}
	return dst
}

// SparseMatrix wraps a CSR layer. Counts matrices from droplet protocols are
// mostly zero, so layers loaded from matrix-market files stay in this form
// until a plot or fit needs dense columns.
type SparseMatrix struct {
	m *sparse.CSR
}

// NewSparseCOO assembles a CSR layer from coordinate triplets. Duplicate
// entries are summed by the CSR conversion. Indices are zero-based.
func NewSparseCOO(rows, cols int, rowIdx, colIdx []int, values []float64) (*SparseMatrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("sparse layer: invalid shape %dx%d", rows, cols)
	}
	if len(rowIdx) != len(colIdx) || len(rowIdx) != len(values) {
		return nil, fmt.Errorf("sparse layer: triplet lengths differ (%d rows, %d cols, %d values)", len(rowIdx), len(colIdx), len(values))
	}
	for k, i := range rowIdx {
		j := colIdx[k]
		if i < 0 || i >= rows || j < 0 || j >= cols {
			return nil, fmt.Errorf("sparse layer: entry %d at (%d,%d) outside %dx%d", k, i, j, rows, cols)
		}
	}
	coo := sparse.NewCOO(rows, cols, rowIdx, colIdx, values)
	return &SparseMatrix{m: coo.ToCSR()}, nil
}

// WrapCSR adopts an existing CSR matrix without copying.
func WrapCSR(m *sparse.CSR) *SparseMatrix { return &SparseMatrix{m: m} }

func (s *SparseMatrix) Dims() (int, int)    { return s.m.Dims() }
func (s *SparseMatrix) At(i, j int) float64 { return s.m.At(i, j) }
func (s *SparseMatrix) Dense() *mat.Dense   { return s.m.ToDense() }
func (s *SparseMatrix) IsSparse() bool      { return true }
func (s *SparseMatrix) NNZ() int            { return s.m.NNZ() }

// CSR exposes the underlying matrix for callers that iterate non-zeros.
func (s *SparseMatrix) CSR() *sparse.CSR { return s.m }

func (s *SparseMatrix) ColumnInto(dst []float64, j int) []float64 {
	r, _ := s.m.Dims()
	if len(dst) != r {
		dst = make([]float64, r)
	} else {
		for i := range dst {
			dst[i] = 0
		}
	}
	for i := 0; i < r; i++ {
		s.m.DoRowNonZero(i, func(_, c int, v float64) {
			if c == j {
				dst[i] = v
			}
		})
	}
	return dst
}

func (s *SparseMatrix) RowSums(dst []float64) []float64 {
	r, _ := s.m.Dims()
	if len(dst) != r {
		dst = make([]float64, r)
	} else {
		for i := range dst {
			dst[i] = 0
		}
	}
	s.m.DoNonZero(func(i, _ int, v float64) {
		dst[i] += v
	})
	return dst
}

// Triplets flattens any Matrix into coordinate form, used by the processed
// dataset writer. Dense inputs only emit non-zero entries.
func Triplets(m Matrix) (rowIdx, colIdx []int, values []float64) {
	if s, ok := m.(*SparseMatrix); ok {
		rowIdx = make([]int, 0, s.NNZ())
		colIdx = make([]int, 0, s.NNZ())
		values = make([]float64, 0, s.NNZ())
		s.m.DoNonZero(func(i, j int, v float64) {
			rowIdx = append(rowIdx, i)
			colIdx = append(colIdx, j)
			values = append(values, v)
		})
		return rowIdx, colIdx, values
	}
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if v != 0 {
				rowIdx = append(rowIdx, i)
				colIdx = append(colIdx, j)
				values = append(values, v)
			}
		}
	}
	return rowIdx, colIdx, values
}
