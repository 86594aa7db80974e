package plotting

import (
	"math"
	"strings"
	"testing"
)

func TestThemeByName(t *testing.T) {
	for _, name := range ThemeNames() {
		th, err := ThemeByName(name)
		if err != nil {
			t.Errorf("ThemeByName(%q): %v", name, err)
			continue
		}
		if th.Name != name {
			t.Errorf("theme %q carries name %q", name, th.Name)
		}
	}
	if len(ThemeNames()) != 9 {
		t.Errorf("have %d themes, want 9", len(ThemeNames()))
	}

	th, err := ThemeByName("")
	if err != nil {
		t.Fatalf("ThemeByName(\"\"): %v", err)
	}
	if th.Name != "blue" {
		t.Errorf("empty name resolved to %q, want the blue default", th.Name)
	}

	_, err = ThemeByName("plasma")
	if err == nil {
		t.Fatal("expected error for unknown theme")
	}
	if !strings.Contains(err.Error(), "viridis") {
		t.Errorf("error %q should list known themes", err)
	}
}

func TestThemeDarkness(t *testing.T) {
	light, _ := ThemeByName("blue")
	dark, _ := ThemeByName("inferno")
	if light.IsDark() {
		t.Error("blue theme should read as light")
	}
	if !dark.IsDark() {
		t.Error("inferno theme should read as dark")
	}
	if fc := light.FontColor(); fc.R != 0 || fc.G != 0 || fc.B != 0 {
		t.Errorf("light theme font = %+v, want black", fc)
	}
	if fc := dark.FontColor(); fc.R != 255 {
		t.Errorf("dark theme font = %+v, want white", fc)
	}
}

func TestMapValue(t *testing.T) {
	th, _ := ThemeByName("viridis")
	lo := th.MapValue(0, 255)
	hi := th.MapValue(1, 255)
	if lo == hi {
		t.Error("colormap ends should differ")
	}
	if lo.A != 255 {
		t.Errorf("alpha = %d, want 255", lo.A)
	}
	// Out-of-range values clamp instead of wrapping.
	if th.MapValue(-3, 255) != lo {
		t.Error("below-range value should clamp to the low end")
	}
	if th.MapValue(9, 255) != hi {
		t.Error("above-range value should clamp to the high end")
	}

	miss := th.MapValue(math.NaN(), 200)
	if miss.R != miss.G || miss.G != miss.B {
		t.Errorf("missing color %+v should be gray", miss)
	}
	if miss.A != 200 {
		t.Errorf("missing alpha = %d, want 200", miss.A)
	}

	lightMiss, _ := ThemeByName("blue")
	if lightMiss.MapValue(math.NaN(), 255).R != 211 {
		t.Error("light themes use the light gray for missing values")
	}
	if miss.R != 85 {
		t.Error("dark themes use the dim gray for missing values")
	}
}

func TestColorKey(t *testing.T) {
	light, _ := ThemeByName("blue")
	cols := light.ColorKey(3)
	if len(cols) != 3 {
		t.Fatalf("got %d colors, want 3", len(cols))
	}
	// The first tab20 entry is the familiar matplotlib blue.
	if cols[0].R != 0x1f || cols[0].G != 0x77 || cols[0].B != 0xb4 {
		t.Errorf("first key color = %+v, want #1f77b4", cols[0])
	}
	seen := map[[3]uint8]bool{}
	for _, c := range cols {
		k := [3]uint8{c.R, c.G, c.B}
		if seen[k] {
			t.Errorf("key color %+v repeated", c)
		}
		seen[k] = true
	}

	// Past the table the palette falls back to gradient sampling.
	many := light.ColorKey(25)
	if len(many) != 25 {
		t.Fatalf("got %d colors, want 25", len(many))
	}

	dark, _ := ThemeByName("fire")
	dcols := dark.ColorKey(4)
	if len(dcols) != 4 {
		t.Fatalf("got %d dark colors, want 4", len(dcols))
	}
	if dcols[0] == dcols[3] {
		t.Error("dark key colors should spread over the colormap")
	}

	if light.ColorKey(0) != nil {
		t.Error("zero colors should yield nil")
	}
}
