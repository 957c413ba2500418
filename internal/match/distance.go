package match

import "math"

// EuclideanDistance computes the Euclidean distance between two encoding
// vectors. Returns +Inf for unusable input (length mismatch, empty, NaN/Inf
// components) so that a broken probe or reference can never match anything.
// All-zero vectors are a valid point in the space; screening them out is the
// caller's job (see Usable).
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		if math.IsNaN(a[i]) || math.IsInf(a[i], 0) || math.IsNaN(b[i]) || math.IsInf(b[i], 0) {
			return math.Inf(1)
		}
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Usable reports whether an encoding vector has the expected dimension and
// contains only finite, not-all-zero values.
func Usable(v []float64, dim int) bool {
	if len(v) != dim {
		return false
	}
	zero := true
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
		if x != 0 {
			zero = false
		}
	}
	return !zero
}
