package kinetics

import (
	"fmt"
	"time"

	"github.com/ajinocean/dynamo-release/src/dataset"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultComponents is how many principal components the pipeline keeps.
const DefaultComponents = 30

// PCA projects X onto its leading principal components, storing the scores
// in obsm X_pca and the explained variance ratios on the dataset.
func PCA(d *dataset.Dataset, components int) error {
	defer dataset.TimeTrack(time.Now(), "pca")
	if components <= 0 {
		components = DefaultComponents
	}
	n, g := d.X.Dims()
	if n < 2 {
		return fmt.Errorf("pca: need at least 2 cells, have %d", n)
	}
	x := d.X.Dense()

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return fmt.Errorf("pca: decomposition failed on %dx%d matrix", n, g)
	}
	vars := pc.VarsTo(nil)
	sum := 0.0
	for _, v := range vars {
		sum += v
	}
	if sum == 0 {
		return fmt.Errorf("pca: matrix has zero variance")
	}
	k := components
	if k > len(vars) {
		k = len(vars)
	}
	ratio := make([]float64, k)
	for i := 0; i < k; i++ {
		ratio[i] = vars[i] / sum
	}

	var vec mat.Dense
	pc.VectorsTo(&vec)

	// Scores are the centered data projected on the leading eigenvectors.
	centered := mat.NewDense(n, g, nil)
	col := make([]float64, n)
	for j := 0; j < g; j++ {
		mat.Col(col, j, x)
		m := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			centered.Set(i, j, col[i]-m)
		}
	}
	var scores mat.Dense
	scores.Mul(centered, vec.Slice(0, g, 0, k))

	d.Obsm[dataset.ObsmPCA] = &scores
	d.ExplainedVarianceRatio = ratio
	dataset.Infof("[pca] kept %d components, leading ratio %.3f", k, ratio[0])
	return nil
}

// FindElbow picks the component index marked on the variance-explained
// curve. With nPCs > 0 that explicit choice wins. Otherwise the elbow is
// the first index where the per-component gain crosses threshold, falling
// back to component 20 when the gains never cross. The returned index is
// clamped to the available components.
func FindElbow(ratios []float64, threshold float64, nPCs int) int {
	clamp := func(i int) int {
		if i < 0 {
			i = 0
		}
		if i > len(ratios)-1 {
			i = len(ratios) - 1
		}
		return i
	}
	if len(ratios) == 0 {
		return 0
	}
	if nPCs > 0 {
		return clamp(nPCs - 1)
	}
	if threshold <= 0 {
		threshold = 0.002
	}
	// Gains between consecutive cumulative points are the ratios shifted by
	// one; the elbow sits where "gain above threshold" first changes.
	above := make([]bool, 0, len(ratios)-1)
	for _, r := range ratios[1:] {
		above = append(above, r > threshold)
	}
	for i := 0; i+1 < len(above); i++ {
		if above[i] != above[i+1] {
			return clamp(i)
		}
	}
	return clamp(20)
}
