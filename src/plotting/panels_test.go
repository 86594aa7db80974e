package plotting

import (
	"strings"
	"testing"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"gonum.org/v1/gonum/mat"
)

func TestClassesFromLabels(t *testing.T) {
	th, _ := ThemeByName("blue")
	labels := []string{"b", "a", "b", "c", "a"}
	xs := []float64{1, 2, 3, 4, 5}
	ys := []float64{10, 20, 30, 40, 50}
	classes := classesFromLabels(th, labels, xs, ys, 120)
	if len(classes) != 3 {
		t.Fatalf("got %d classes, want 3", len(classes))
	}
	// First appearance wins the ordering, not alphabetical sorting.
	if classes[0].name != "b" || classes[1].name != "a" || classes[2].name != "c" {
		t.Errorf("class order = %q,%q,%q", classes[0].name, classes[1].name, classes[2].name)
	}
	if len(classes[0].xs) != 2 || classes[0].xs[0] != 1 || classes[0].xs[1] != 3 {
		t.Errorf("class b coordinates = %v", classes[0].xs)
	}
	if classes[2].ys[0] != 40 {
		t.Errorf("class c y = %v", classes[2].ys)
	}
	for _, c := range classes {
		if c.col.A != 120 {
			t.Errorf("class %q alpha = %d, want 120", c.name, c.col.A)
		}
	}
}

func TestColorsFromValues(t *testing.T) {
	th, _ := ThemeByName("viridis")
	cols := colorsFromValues(th, []float64{0, 0.5, 1}, 200)
	if len(cols) != 3 {
		t.Fatalf("got %d colors", len(cols))
	}
	if cols[0] == cols[2] {
		t.Error("colormap endpoints should differ")
	}
	for _, c := range cols {
		if c.A != 200 {
			t.Errorf("alpha = %d, want 200", c.A)
		}
	}
}

func TestResolveVelocitySource(t *testing.T) {
	d, err := dataset.Simulate(dataset.SimulateOptions{Cells: 30, Genes: 4, Seed: 1})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	// Nothing computed yet: every key should point out the missing piece.
	if _, _, err := resolveVelocitySource(d, ""); err == nil || !strings.Contains(err.Error(), "velocity estimation") {
		t.Errorf("missing layer error = %v", err)
	}
	if _, _, err := resolveVelocitySource(d, "P"); err == nil || !strings.Contains(err.Error(), "protein") {
		t.Errorf("missing protein error = %v", err)
	}

	n, g := 30, 4
	if err := d.SetLayer(dataset.LayerVelocityS, dataset.WrapDense(mat.NewDense(n, g, nil))); err != nil {
		t.Fatalf("SetLayer: %v", err)
	}
	for _, key := range []string{"", "S", dataset.LayerVelocityS} {
		source, protein, err := resolveVelocitySource(d, key)
		if err != nil || protein || source != dataset.LayerVelocityS {
			t.Errorf("key %q resolved to (%q,%v,%v)", key, source, protein, err)
		}
	}
	if _, _, err := resolveVelocitySource(d, "U"); err == nil {
		t.Error("U should fail while only the spliced velocity exists")
	}

	d.Obsm[dataset.ObsmVelocityProtein] = mat.NewDense(n, 2, nil)
	source, protein, err := resolveVelocitySource(d, "P")
	if err != nil || !protein || source != dataset.ObsmVelocityProtein {
		t.Errorf("protein key resolved to (%q,%v,%v)", source, protein, err)
	}
}

func TestSanitizeAlpha(t *testing.T) {
	cases := []struct {
		in   float64
		want uint8
	}{
		{0, 102},  // default 0.4
		{-1, 102}, // negative falls back too
		{0.5, 128},
		{1, 255},
		{3, 255}, // clamps above one
	}
	for _, c := range cases {
		if got := sanitizeAlpha(c.in); got != c.want {
			t.Errorf("sanitizeAlpha(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}
