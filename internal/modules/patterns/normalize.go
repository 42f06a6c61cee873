package patterns

// Normalize min-max scales a sequence into [0,1]: (v - min) / (max - min).
// The minimum input maps to 0, the maximum to 1, and relative order is preserved.
//
// A perfectly flat window (max == min) has no shape information; it maps to a
// constant 0.5 vector. This convention is applied identically when building the
// library and when embedding the current open interval, so flat curves compare
// equal to each other and keep a defined cosine against everything else.
func Normalize(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	normalized := make([]float64, len(values))

	if max == min {
		for i := range normalized {
			normalized[i] = 0.5
		}
		return normalized
	}

	span := max - min
	for i, v := range values {
		normalized[i] = (v - min) / span
	}

	return normalized
}
