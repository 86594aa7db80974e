package dataset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// readTriplets parses a coordinate-format matrix-market stream into
// zero-based triplets. Only "matrix coordinate real/integer general" files
// are supported, which is what droplet pipelines export.
func readTriplets(r io.Reader) (rows, cols int, rowIdx, colIdx []int, values []float64, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if !sc.Scan() {
		return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: empty stream")
	}
	header := strings.ToLower(strings.TrimSpace(sc.Text()))
	if !strings.HasPrefix(header, "%%matrixmarket") {
		return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: missing %%%%MatrixMarket header")
	}
	if !strings.Contains(header, "coordinate") {
		return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: only coordinate format is supported")
	}
	if !strings.Contains(header, "real") && !strings.Contains(header, "integer") {
		return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: only real or integer values are supported")
	}
	if !strings.Contains(header, "general") {
		return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: only general symmetry is supported")
	}

	nnz := -1
	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "%") {
			continue
		}
		fields := strings.Fields(text)
		if nnz < 0 {
			// Dimension line: rows cols entries.
			if len(fields) != 3 {
				return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: line %d: want 3 dimension fields, got %d", line, len(fields))
			}
			var e1, e2, e3 error
			rows, e1 = strconv.Atoi(fields[0])
			cols, e2 = strconv.Atoi(fields[1])
			nnz, e3 = strconv.Atoi(fields[2])
			if e1 != nil || e2 != nil || e3 != nil || rows <= 0 || cols <= 0 || nnz < 0 {
				return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: line %d: bad dimensions %q", line, text)
			}
			rowIdx = make([]int, 0, nnz)
			colIdx = make([]int, 0, nnz)
			values = make([]float64, 0, nnz)
			continue
		}
		if len(fields) != 3 {
			return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: line %d: want 3 entry fields, got %d", line, len(fields))
		}
		i, e1 := strconv.Atoi(fields[0])
		j, e2 := strconv.Atoi(fields[1])
		v, e3 := strconv.ParseFloat(fields[2], 64)
		if e1 != nil || e2 != nil || e3 != nil {
			return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: line %d: bad entry %q", line, text)
		}
		if i < 1 || i > rows || j < 1 || j > cols {
			return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: line %d: entry (%d,%d) outside %dx%d", line, i, j, rows, cols)
		}
		rowIdx = append(rowIdx, i-1)
		colIdx = append(colIdx, j-1)
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: %w", err)
	}
	if nnz < 0 {
		return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: missing dimension line")
	}
	if len(values) != nnz {
		return 0, 0, nil, nil, nil, fmt.Errorf("matrix-market: header promises %d entries, found %d", nnz, len(values))
	}
	return rows, cols, rowIdx, colIdx, values, nil
}

// ReadMatrixMarket parses a coordinate-format matrix-market stream into a
// sparse layer, keeping the stored orientation.
func ReadMatrixMarket(r io.Reader) (*SparseMatrix, error) {
	rows, cols, ri, ci, vals, err := readTriplets(r)
	if err != nil {
		return nil, err
	}
	return NewSparseCOO(rows, cols, ri, ci, vals)
}

// WriteMatrixMarket writes any layer in coordinate format with one-based
// indices, the shape other tools expect back.
func WriteMatrixMarket(w io.Writer, m Matrix) error {
	bw := bufio.NewWriter(w)
	rows, cols := m.Dims()
	ri, ci, vals := Triplets(m)
	if _, err := fmt.Fprintln(bw, "%%MatrixMarket matrix coordinate real general"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "%d %d %d\n", rows, cols, len(vals)); err != nil {
		return err
	}
	for k := range vals {
		if _, err := fmt.Fprintf(bw, "%d %d %g\n", ri[k]+1, ci[k]+1, vals[k]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
