package recording

import (
	"fmt"
	"math"
)

// interpolateFinite replaces non-finite samples (NaN/±Inf) with a linear
// interpolation over the surrounding finite neighborhood, per the
// preload contract. If every sample is non-finite, it returns an error —
// there is no neighborhood to interpolate from.
func interpolateFinite(timestamps, values []float64) ([]float64, error) {
	n := len(values)
	finiteIdx := make([]int, 0, n)
	for i, v := range values {
		if isFinite(v) {
			finiteIdx = append(finiteIdx, i)
		}
	}
	if len(finiteIdx) == 0 {
		return nil, fmt.Errorf("all samples are non-finite")
	}
	if len(finiteIdx) == n {
		return values, nil
	}

	out := make([]float64, n)
	copy(out, values)

	// Fill the head/tail runs by clamping to the nearest finite sample,
	// and interior gaps by linear interpolation between the finite
	// neighbors bracketing them.
	first := finiteIdx[0]
	for i := 0; i < first; i++ {
		out[i] = values[first]
	}
	last := finiteIdx[len(finiteIdx)-1]
	for i := last + 1; i < n; i++ {
		out[i] = values[last]
	}

	for k := 0; k < len(finiteIdx)-1; k++ {
		lo, hi := finiteIdx[k], finiteIdx[k+1]
		if hi == lo+1 {
			continue
		}
		loT, hiT := timestamps[lo], timestamps[hi]
		loV, hiV := values[lo], values[hi]
		span := hiT - loT
		for i := lo + 1; i < hi; i++ {
			if span == 0 {
				out[i] = loV
				continue
			}
			frac := (timestamps[i] - loT) / span
			out[i] = loV + frac*(hiV-loV)
		}
	}

	return out, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
