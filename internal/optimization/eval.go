package optimization

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SafeValue evaluates f at x and maps any non-finite result to +Inf, so a
// divergent candidate always fails a "new <= reference + ..." comparison.
func SafeValue(f Function, x []float64) float64 {
	v := f.Value(x)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(1)
	}
	return v
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// AllFinite reports whether every entry of s is finite.
func AllFinite(s []float64) bool {
	for _, v := range s {
		if !IsFinite(v) {
			return false
		}
	}
	return true
}

// SymFinite reports whether every entry of the upper triangle of m is finite.
// A nil matrix is not finite.
func SymFinite(m *mat.SymDense) bool {
	if m == nil {
		return false
	}
	n := m.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if !IsFinite(m.At(i, j)) {
				return false
			}
		}
	}
	return true
}

// Norm returns the Euclidean norm of g.
func Norm(g []float64) float64 {
	return floats.Norm(g, 2)
}

// Step returns x + alpha*d in a new slice.
func Step(x, d []float64, alpha float64) []float64 {
	dst := make([]float64, len(x))
	floats.AddScaledTo(dst, x, alpha, d)
	return dst
}
