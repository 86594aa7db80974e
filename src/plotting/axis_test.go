package plotting

import (
	"math"
	"testing"
)

func TestNiceAxisBounds(t *testing.T) {
	lo, hi := niceAxisBounds(0, 100)
	if lo > 0 || hi < 100 {
		t.Errorf("bounds (%g,%g) do not contain [0,100]", lo, hi)
	}
	// Rounded outward to the span's order of magnitude.
	if math.Mod(lo, 100) != 0 || math.Mod(hi, 100) != 0 {
		t.Errorf("bounds (%g,%g) not aligned to the span magnitude", lo, hi)
	}

	lo, hi = niceAxisBounds(5, 5)
	if !(lo < 5 && hi > 5) {
		t.Errorf("degenerate range should widen around 5, got (%g,%g)", lo, hi)
	}

	lo, hi = niceAxisBounds(-2.3, 7.9)
	if lo > -2.3 || hi < 7.9 {
		t.Errorf("bounds (%g,%g) do not contain [-2.3,7.9]", lo, hi)
	}
}

func TestNiceTicks(t *testing.T) {
	ticks := niceTicks(0, 1, 6)
	if len(ticks) < 3 || len(ticks) > 9 {
		t.Fatalf("got %d ticks for n=6", len(ticks))
	}
	if ticks[0].Value > 0 {
		t.Errorf("first tick %g should not exceed the axis minimum", ticks[0].Value)
	}
	if last := ticks[len(ticks)-1].Value; last < 1 {
		t.Errorf("last tick %g should reach the axis maximum", last)
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Value <= ticks[i-1].Value {
			t.Fatalf("ticks not increasing: %g then %g", ticks[i-1].Value, ticks[i].Value)
		}
	}

	if got := niceTicks(0, 1, 1); got != nil {
		t.Errorf("n=1 should yield no ticks, got %d", len(got))
	}
	if got := niceTicks(math.NaN(), 1, 5); got != nil {
		t.Errorf("NaN bounds should yield no ticks, got %d", len(got))
	}
}

func TestFormatTick(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1234, "1234"},
		{12.34, "12.3"},
		{1.234, "1.23"},
		{0.05, "0.05"},
		{0.003, "0.003"},
		{-256, "-256"},
	}
	for _, c := range cases {
		if got := formatTick(c.in); got != c.want {
			t.Errorf("formatTick(%g) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLogDecadeTicks(t *testing.T) {
	ticks := logDecadeTicks(-2.3, 1.7)
	if len(ticks) == 0 {
		t.Fatal("no ticks produced")
	}
	if ticks[0].Value != -3 {
		t.Errorf("first decade = %g, want -3", ticks[0].Value)
	}
	if last := ticks[len(ticks)-1].Value; last != 2 {
		t.Errorf("last decade = %g, want 2", last)
	}
	// Labels carry the linear-space value.
	for _, tick := range ticks {
		if tick.Value == 0 && tick.Label != "1.00" {
			t.Errorf("decade 0 labeled %q, want 1.00", tick.Label)
		}
		if tick.Value == 2 && tick.Label != "100" {
			t.Errorf("decade 2 labeled %q, want 100", tick.Label)
		}
	}

	// Wide spans thin out to every other decade.
	wide := logDecadeTicks(-6, 6)
	for i := 1; i < len(wide); i++ {
		if wide[i].Value-wide[i-1].Value != 2 {
			t.Fatalf("wide span should step by 2 decades, got %g to %g", wide[i-1].Value, wide[i].Value)
		}
	}
}

func TestFiniteRange(t *testing.T) {
	min, max, ok := finiteRange([]float64{3, math.NaN(), -1, math.Inf(1), 7})
	if !ok || min != -1 || max != 7 {
		t.Errorf("finiteRange = (%g,%g,%v), want (-1,7,true)", min, max, ok)
	}
	if _, _, ok := finiteRange([]float64{math.NaN()}); ok {
		t.Error("all-NaN input should report not ok")
	}
	if _, _, ok := finiteRange(nil); ok {
		t.Error("empty input should report not ok")
	}
}

func TestPaddedExtent(t *testing.T) {
	lo, hi := paddedExtent([]float64{0, 10})
	if lo != -0.5 || hi != 10.5 {
		t.Errorf("paddedExtent = (%g,%g), want (-0.5,10.5)", lo, hi)
	}
	lo, hi = paddedExtent(nil)
	if lo != 0 || hi != 1 {
		t.Errorf("empty extent = (%g,%g), want (0,1)", lo, hi)
	}
	lo, hi = paddedExtent([]float64{4, 4})
	if !(lo < 4 && hi > 4) {
		t.Errorf("constant extent should widen around 4, got (%g,%g)", lo, hi)
	}
}
