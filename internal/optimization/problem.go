package optimization

import "gonum.org/v1/gonum/mat"

// Problem adapts plain closures to the oracle interfaces, in the spirit of
// gonum's optimize.Problem. Hess may be nil when only first-order methods are used.
type Problem struct {
	Func func(x []float64) float64
	Grad func(x []float64) []float64
	Hess func(x []float64) *mat.SymDense
}

var _ TwiceDifferentiable = Problem{}

// Value implements Function.
func (p Problem) Value(x []float64) float64 {
	return p.Func(x)
}

// Gradient implements Function.
func (p Problem) Gradient(x []float64) []float64 {
	return p.Grad(x)
}

// Hessian implements TwiceDifferentiable. It panics if Hess is nil.
func (p Problem) Hessian(x []float64) *mat.SymDense {
	if p.Hess == nil {
		panic("optimization: Problem has no Hessian")
	}
	return p.Hess(x)
}
