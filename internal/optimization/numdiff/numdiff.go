// Package numdiff builds derivative oracles from value-only objectives using
// finite differences.
package numdiff

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Settings controls the difference formula and step sizes. Zero values select
// the central formula with gonum's default steps.
type Settings struct {
	Formula      fd.Formula
	GradientStep float64
	HessianStep  float64
}

// Oracle approximates the gradient and Hessian of Func. Like the functions it
// wraps, it is stateless and safe for concurrent use.
type Oracle struct {
	fn   func(x []float64) float64
	grad fd.Settings
	hess fd.Settings
}

var _ optimization.TwiceDifferentiable = (*Oracle)(nil)

// New returns an oracle for f. settings may be nil.
func New(f func(x []float64) float64, settings *Settings) *Oracle {
	var s Settings
	if settings != nil {
		s = *settings
	}
	formula := s.Formula
	if formula.Derivative == 0 {
		formula = fd.Central
	}
	return &Oracle{
		fn:   f,
		grad: fd.Settings{Formula: formula, Step: s.GradientStep},
		hess: fd.Settings{Formula: formula, Step: s.HessianStep},
	}
}

// Value implements optimization.Function.
func (o *Oracle) Value(x []float64) float64 {
	return o.fn(x)
}

// Gradient implements optimization.Function.
func (o *Oracle) Gradient(x []float64) []float64 {
	settings := o.grad
	return fd.Gradient(nil, o.fn, x, &settings)
}

// Hessian implements optimization.TwiceDifferentiable.
func (o *Oracle) Hessian(x []float64) *mat.SymDense {
	settings := o.hess
	h := mat.NewSymDense(len(x), nil)
	fd.Hessian(h, o.fn, x, &settings)
	return h
}
