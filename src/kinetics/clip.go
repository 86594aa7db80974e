package kinetics

import (
	"math"

	"github.com/montanaflynn/stats"
)

// finite filters out NaN and infinities.
func finite(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

// rangeOf scans a non-empty slice for its extremes.
func rangeOf(v []float64) (lo, hi float64) {
	lo, hi = v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

// SaturateAtPercentile rescales non-negative values to [0,1] against the
// given percentile, clipping everything above it. A handful of saturated
// outliers would otherwise own the whole color range. NaN passes through.
func SaturateAtPercentile(v []float64, pct float64) []float64 {
	out := make([]float64, len(v))
	ref := 0.0
	if f := finite(v); len(f) > 0 {
		if p, err := stats.Percentile(f, pct); err == nil {
			ref = p
		} else {
			// Tiny vectors underflow the percentile index; use the maximum.
			_, ref = rangeOf(f)
		}
	}
	for i, x := range v {
		switch {
		case math.IsNaN(x):
			out[i] = math.NaN()
		case ref <= 0:
			out[i] = 0
		default:
			out[i] = math.Min(math.Max(x/ref, 0), 1)
		}
	}
	return out
}

// SymmetricClip rescales signed values to [0,1] with 0.5 at zero, using the
// larger magnitude of the two percentiles as the limit so diverging
// colormaps stay centered. NaN passes through.
func SymmetricClip(v []float64, loPct, hiPct float64) []float64 {
	out := make([]float64, len(v))
	limit := 0.0
	if f := finite(v); len(f) > 0 {
		lo, e1 := stats.Percentile(f, loPct)
		hi, e2 := stats.Percentile(f, hiPct)
		if e1 != nil || e2 != nil {
			// Tiny vectors underflow the percentile index; use the range.
			lo, hi = rangeOf(f)
		}
		limit = math.Max(math.Abs(lo), math.Abs(hi))
	}
	for i, x := range v {
		switch {
		case math.IsNaN(x):
			out[i] = math.NaN()
		case limit == 0:
			out[i] = 0.5
		default:
			out[i] = math.Min(math.Max((x+limit)/(2*limit), 0), 1)
		}
	}
	return out
}

// MinMaxScale rescales values to [0,1] over their finite range; a constant
// vector maps to 0.5. NaN passes through.
func MinMaxScale(v []float64) []float64 {
	out := make([]float64, len(v))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	for i, x := range v {
		switch {
		case math.IsNaN(x):
			out[i] = math.NaN()
		case lo > hi || lo == hi:
			out[i] = 0.5
		default:
			out[i] = (x - lo) / (hi - lo)
		}
	}
	return out
}
