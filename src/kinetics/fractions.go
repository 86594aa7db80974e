// Package kinetics estimates per-gene RNA kinetics from the layered counts
// of a dataset: category fractions, steady-state rate fits, velocity
// residuals, PCA and mean-dispersion gene statistics. Plotting sits on top
// of these results and never touches raw layers directly.
package kinetics

import (
	"fmt"
	"math"

	"github.com/ajinocean/dynamo-release/src/dataset"
)

// FractionResult holds per-cell fractions of each transcript category,
// optionally grouped by a categorical per-cell annotation.
type FractionResult struct {
	Mode       dataset.Mode
	Categories []string
	// Values has one slice per category, one entry per cell. Cells whose
	// category total is zero carry NaN.
	Values map[string][]float64

	// GroupColumn / Groups / GroupLevels describe the faceting annotation;
	// Groups is nil when no grouping was requested.
	GroupColumn string
	Groups      []string
	GroupLevels []string

	ZeroTotalCells int
}

// CategoryFractions computes the share each transcript category takes of
// every cell's total, the quantity behind the fraction violins. mode ""
// infers the mode from the stored layers. group names a categorical obs
// column to facet by; "" disables grouping.
func CategoryFractions(d *dataset.Dataset, mode dataset.Mode, group string) (*FractionResult, error) {
	var err error
	if mode == "" {
		mode, err = d.DetectMode()
		if err != nil {
			return nil, err
		}
	}

	sums := func(name string) ([]float64, error) {
		m, ok := d.Layer(name)
		if !ok {
			return nil, fmt.Errorf("fractions: layer %q required for %s mode", name, mode)
		}
		return m.RowSums(nil), nil
	}

	res := &FractionResult{Mode: mode, Values: map[string][]float64{}}
	n := d.NumCells()
	switch mode {
	case dataset.ModeLabeling:
		newSum, err := sums(dataset.LayerNew)
		if err != nil {
			return nil, err
		}
		totSum, err := sums(dataset.LayerTotal)
		if err != nil {
			return nil, err
		}
		newFrac := make([]float64, n)
		oldFrac := make([]float64, n)
		for i := range newFrac {
			if totSum[i] == 0 {
				newFrac[i], oldFrac[i] = math.NaN(), math.NaN()
				res.ZeroTotalCells++
				continue
			}
			newFrac[i] = newSum[i] / totSum[i]
			oldFrac[i] = 1 - newFrac[i]
		}
		res.Categories = []string{"new_frac_cell", "old_frac_cell"}
		res.Values["new_frac_cell"] = newFrac
		res.Values["old_frac_cell"] = oldFrac

	case dataset.ModeSplicing:
		parts := []string{dataset.LayerSpliced, dataset.LayerUnspliced}
		if _, ok := d.Layer(dataset.LayerAmbiguous); ok {
			parts = []string{dataset.LayerAmbiguous, dataset.LayerSpliced, dataset.LayerUnspliced}
		}
		if err := fractionOfTotal(d, res, parts, sums); err != nil {
			return nil, err
		}

	case dataset.ModeFull:
		parts := []string{dataset.LayerUU, dataset.LayerUL, dataset.LayerSU, dataset.LayerSL}
		if err := fractionOfTotal(d, res, parts, sums); err != nil {
			return nil, err
		}
		renamed := make([]string, len(res.Categories))
		for i, c := range res.Categories {
			renamed[i] = c + "_frac"
			res.Values[renamed[i]] = res.Values[c]
			delete(res.Values, c)
		}
		res.Categories = renamed

	default:
		return nil, fmt.Errorf("fractions: unknown mode %q", mode)
	}

	if group != "" {
		labels, ok := d.Obs.Labels[group]
		if !ok {
			return nil, fmt.Errorf("fractions: obs has no categorical column %q (have %v)", group, d.Obs.LabelColumns())
		}
		res.GroupColumn = group
		res.Groups = labels
		seen := map[string]bool{}
		for _, l := range labels {
			if !seen[l] {
				seen[l] = true
				res.GroupLevels = append(res.GroupLevels, l)
			}
		}
	}
	if res.ZeroTotalCells > 0 {
		dataset.Warnf("[fractions] %d cells with zero totals excluded", res.ZeroTotalCells)
	}
	return res, nil
}

// fractionOfTotal fills res with part/sum(parts) for each listed layer.
func fractionOfTotal(d *dataset.Dataset, res *FractionResult, parts []string, sums func(string) ([]float64, error)) error {
	n := d.NumCells()
	partSums := make([][]float64, len(parts))
	for k, name := range parts {
		s, err := sums(name)
		if err != nil {
			return err
		}
		partSums[k] = s
	}
	den := make([]float64, n)
	for _, s := range partSums {
		for i, v := range s {
			den[i] += v
		}
	}
	for k, name := range parts {
		frac := make([]float64, n)
		for i := range frac {
			if den[i] == 0 {
				frac[i] = math.NaN()
				continue
			}
			frac[i] = partSums[k][i] / den[i]
		}
		res.Categories = append(res.Categories, name)
		res.Values[name] = frac
	}
	for i := range den {
		if den[i] == 0 {
			res.ZeroTotalCells++
		}
	}
	return nil
}
