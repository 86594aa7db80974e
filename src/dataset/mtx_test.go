package dataset

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadMatrixMarket(t *testing.T) {
	const src = `%%MatrixMarket matrix coordinate real general
% exported by a droplet pipeline
3 2 3
1 1 5
3 2 2.5
2 1 1
`
	m, err := ReadMatrixMarket(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	r, c := m.Dims()
	if r != 3 || c != 2 {
		t.Fatalf("Dims() = (%d,%d), want (3,2)", r, c)
	}
	if got := m.At(0, 0); got != 5 {
		t.Errorf("At(0,0) = %g, want 5", got)
	}
	if got := m.At(2, 1); got != 2.5 {
		t.Errorf("At(2,1) = %g, want 2.5", got)
	}
	if got := m.At(1, 1); got != 0 {
		t.Errorf("At(1,1) = %g, want 0", got)
	}
}

func TestReadMatrixMarketRejects(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"no header", "3 2 0\n"},
		{"array format", "%%MatrixMarket matrix array real general\n3 2\n1\n2\n3\n4\n5\n6\n"},
		{"pattern values", "%%MatrixMarket matrix coordinate pattern general\n2 2 1\n1 1\n"},
		{"symmetric", "%%MatrixMarket matrix coordinate real symmetric\n2 2 1\n1 1 3\n"},
		{"entry out of range", "%%MatrixMarket matrix coordinate real general\n2 2 1\n3 1 1\n"},
		{"count mismatch", "%%MatrixMarket matrix coordinate real general\n2 2 2\n1 1 1\n"},
		{"zero-based entry", "%%MatrixMarket matrix coordinate real general\n2 2 1\n0 1 1\n"},
	}
	for _, c := range cases {
		if _, err := ReadMatrixMarket(strings.NewReader(c.src)); err == nil {
			t.Errorf("%s: expected parse error", c.name)
		}
	}
}

func TestMatrixMarketRoundTrip(t *testing.T) {
	orig, err := NewSparseCOO(4, 3, []int{0, 1, 3, 2}, []int{2, 0, 1, 2}, []float64{1.25, 3, 4.5, 0.125})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WriteMatrixMarket(&buf, orig); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "%%MatrixMarket matrix coordinate real general\n") {
		t.Fatalf("unexpected header in %q", buf.String()[:50])
	}
	back, err := ReadMatrixMarket(&buf)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			if orig.At(i, j) != back.At(i, j) {
				t.Errorf("At(%d,%d) = %g after round trip, want %g", i, j, back.At(i, j), orig.At(i, j))
			}
		}
	}
}

func TestWriteMatrixMarketDense(t *testing.T) {
	m, _ := NewDense(2, 2, []float64{0, 7, 0, 0})
	var buf bytes.Buffer
	if err := WriteMatrixMarket(&buf, m); err != nil {
		t.Fatal(err)
	}
	// Dense zeros are dropped on the way out.
	if !strings.Contains(buf.String(), "2 2 1\n") {
		t.Errorf("dimension line should report 1 entry, got:\n%s", buf.String())
	}
}
