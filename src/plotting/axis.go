package plotting

import (
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
)

// niceAxisBounds pads [min,max] by 5% on both sides and rounds outward to
// the span's order of magnitude.
func niceAxisBounds(min, max float64) (float64, float64) {
	if math.IsNaN(min) || math.IsNaN(max) {
		return min, max
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	pad := span * 0.05
	if pad <= 0 {
		pad = 1
	}
	a := min - pad
	b := max + pad
	mag := math.Pow(10, math.Floor(math.Log10(span)))
	if !math.IsInf(mag, 0) && mag > 0 {
		a = math.Floor(a/mag) * mag
		b = math.Ceil(b/mag) * mag
	}
	return a, b
}

// niceTicks generates around n tick marks between [min, max] using steps of
// 1, 2, 2.5, 5 or 10 scaled by a power of ten.
func niceTicks(min, max float64, n int) []chart.Tick {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	span := max - min
	mag := math.Pow(10, math.Floor(math.Log10(span/float64(n-1))))
	candidates := []float64{1, 2, 2.5, 5, 10}
	bestStep := mag
	bestScore := math.MaxFloat64
	for _, c := range candidates {
		step := c * mag
		count := math.Ceil((max - min) / step)
		if count < 2 {
			count = 2
		}
		score := math.Abs(count - float64(n))
		if score < bestScore {
			bestScore = score
			bestStep = step
		}
	}
	start := math.Floor(min/bestStep) * bestStep
	end := math.Ceil(max/bestStep) * bestStep
	ticks := []chart.Tick{}
	for v := start; v <= end+bestStep/2; v += bestStep {
		ticks = append(ticks, chart.Tick{Value: v, Label: formatTick(v)})
		if len(ticks) > n+2 {
			break
		}
	}
	return ticks
}

func formatTick(v float64) string {
	if v == 0 {
		return "0"
	}
	av := math.Abs(v)
	switch {
	case av >= 100:
		return fmt.Sprintf("%.0f", v)
	case av >= 10:
		return fmt.Sprintf("%.1f", v)
	case av >= 0.01:
		return fmt.Sprintf("%.2f", v)
	default:
		// Dispersion and mean-expression axes reach well below 0.01.
		return fmt.Sprintf("%.2g", v)
	}
}

// logDecadeTicks places ticks at integer decades of values already
// transformed to log10 space, labeled with the untransformed value.
func logDecadeTicks(minLog, maxLog float64) []chart.Tick {
	if math.IsNaN(minLog) || math.IsNaN(maxLog) {
		return nil
	}
	lo := int(math.Floor(minLog))
	hi := int(math.Ceil(maxLog))
	step := 1
	if hi-lo > 8 {
		step = 2
	}
	ticks := []chart.Tick{}
	for k := lo; k <= hi; k += step {
		ticks = append(ticks, chart.Tick{Value: float64(k), Label: formatTick(math.Pow(10, float64(k)))})
	}
	return ticks
}

// finiteRange scans values for their finite min and max; ok is false when
// nothing finite was found.
func finiteRange(vals []float64) (min, max float64, ok bool) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min > max {
		return 0, 0, false
	}
	return min, max, true
}

// paddedExtent pads the finite range of a coordinate column by 5% of its
// span on each side, the margin embeddings are framed with.
func paddedExtent(vals []float64) (float64, float64) {
	min, max, ok := finiteRange(vals)
	if !ok {
		return 0, 1
	}
	span := max - min
	if span <= 0 {
		span = 1
	}
	return min - 0.05*span, max + 0.05*span
}
