// Package objectives provides test functions with analytic derivatives.
package objectives

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Objective is a named, fixed-dimension test function.
type Objective interface {
	optimization.TwiceDifferentiable

	// Name returns the registry name.
	Name() string

	// Dim returns the number of variables.
	Dim() int
}

var registry = map[string]func() Objective{
	"coupled-cubic": func() Objective { return CoupledCubic{} },
	"quadratic":     func() Objective { return DefaultQuadratic() },
	"rosenbrock":    func() Objective { return Rosenbrock{} },
	"flat-valley":   func() Objective { return FlatValley{Scale: 1e4} },
	"saddle":        func() Objective { return Saddle{} },
	"exp-wall":      func() Objective { return ExpWall{Rate: 2} },
}

// Lookup returns the registered objective with the given name.
func Lookup(name string) (Objective, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown objective %q", name)
	}
	return ctor(), nil
}

// Names returns the registered objective names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CoupledCubic is f(x, y) = (2x³y − y³)² + x². It is a sum of squares with its
// minimum f = 0 at the origin, where the y direction is flat to sixth order.
type CoupledCubic struct{}

// Name implements Objective.
func (CoupledCubic) Name() string { return "coupled-cubic" }

// Dim implements Objective.
func (CoupledCubic) Dim() int { return 2 }

// Value implements optimization.Function.
func (CoupledCubic) Value(x []float64) float64 {
	u := 2*x[0]*x[0]*x[0]*x[1] - x[1]*x[1]*x[1]
	return u*u + x[0]*x[0]
}

// Gradient implements optimization.Function.
func (CoupledCubic) Gradient(x []float64) []float64 {
	a, b := x[0], x[1]
	u := 2*a*a*a*b - b*b*b
	ua := 6 * a * a * b
	ub := 2*a*a*a - 3*b*b
	return []float64{2*u*ua + 2*a, 2 * u * ub}
}

// Hessian implements optimization.TwiceDifferentiable.
func (CoupledCubic) Hessian(x []float64) *mat.SymDense {
	a, b := x[0], x[1]
	u := 2*a*a*a*b - b*b*b
	ua := 6 * a * a * b
	ub := 2*a*a*a - 3*b*b
	uaa := 12 * a * b
	uab := 6 * a * a
	ubb := -6 * b
	return mat.NewSymDense(2, []float64{
		2*ua*ua + 2*u*uaa + 2, 2*ua*ub + 2*u*uab,
		2*ua*ub + 2*u*uab, 2*ub*ub + 2*u*ubb,
	})
}

// Quadratic is f(x) = ½xᵀAx − bᵀx for a symmetric positive definite A. Its
// unique minimizer solves Ax = b.
type Quadratic struct {
	A *mat.SymDense
	B []float64
}

// DefaultQuadratic returns the two-dimensional instance with A = [[3 1] [1 2]]
// and b = (1, −1), whose minimizer is (0.6, −0.8).
func DefaultQuadratic() Quadratic {
	return Quadratic{
		A: mat.NewSymDense(2, []float64{3, 1, 1, 2}),
		B: []float64{1, -1},
	}
}

// Name implements Objective.
func (q Quadratic) Name() string { return "quadratic" }

// Dim implements Objective.
func (q Quadratic) Dim() int { return len(q.B) }

// Value implements optimization.Function.
func (q Quadratic) Value(x []float64) float64 {
	xv := mat.NewVecDense(len(x), x)
	return 0.5*mat.Inner(xv, q.A, xv) - mat.Dot(mat.NewVecDense(len(q.B), q.B), xv)
}

// Gradient implements optimization.Function.
func (q Quadratic) Gradient(x []float64) []float64 {
	var g mat.VecDense
	g.MulVec(q.A, mat.NewVecDense(len(x), x))
	out := make([]float64, len(x))
	for i := range out {
		out[i] = g.AtVec(i) - q.B[i]
	}
	return out
}

// Hessian implements optimization.TwiceDifferentiable.
func (q Quadratic) Hessian(x []float64) *mat.SymDense {
	h := mat.NewSymDense(q.Dim(), nil)
	h.CopySym(q.A)
	return h
}

// Minimizer returns the solution of Ax = b, or an error if A is not positive definite.
func (q Quadratic) Minimizer() ([]float64, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(q.A); !ok {
		return nil, fmt.Errorf("quadratic: matrix is not positive definite")
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, mat.NewVecDense(len(q.B), q.B)); err != nil {
		return nil, fmt.Errorf("quadratic: %w", err)
	}
	return mat.Col(nil, 0, &x), nil
}

// Rosenbrock is f(x, y) = (1 − x)² + 100(y − x²)², minimized at (1, 1).
type Rosenbrock struct{}

// Name implements Objective.
func (Rosenbrock) Name() string { return "rosenbrock" }

// Dim implements Objective.
func (Rosenbrock) Dim() int { return 2 }

// Value implements optimization.Function.
func (Rosenbrock) Value(x []float64) float64 {
	t0 := x[1] - x[0]*x[0]
	t1 := 1 - x[0]
	return t1*t1 + 100*t0*t0
}

// Gradient implements optimization.Function.
func (Rosenbrock) Gradient(x []float64) []float64 {
	t0 := x[1] - x[0]*x[0]
	t1 := 1 - x[0]
	return []float64{-400*t0*x[0] - 2*t1, 200 * t0}
}

// Hessian implements optimization.TwiceDifferentiable.
func (Rosenbrock) Hessian(x []float64) *mat.SymDense {
	return mat.NewSymDense(2, []float64{
		1200*x[0]*x[0] - 400*x[1] + 2, -400 * x[0],
		-400 * x[0], 200,
	})
}

// FlatValley is f(x, y) = s·(x + y)². Every point on x = −y is a minimizer and
// the Hessian is singular everywhere, so regularized solves are ill-conditioned
// for small regularization.
type FlatValley struct {
	Scale float64
}

// Name implements Objective.
func (FlatValley) Name() string { return "flat-valley" }

// Dim implements Objective.
func (FlatValley) Dim() int { return 2 }

// Value implements optimization.Function.
func (v FlatValley) Value(x []float64) float64 {
	s := x[0] + x[1]
	return v.Scale * s * s
}

// Gradient implements optimization.Function.
func (v FlatValley) Gradient(x []float64) []float64 {
	g := 2 * v.Scale * (x[0] + x[1])
	return []float64{g, g}
}

// Hessian implements optimization.TwiceDifferentiable.
func (v FlatValley) Hessian(x []float64) *mat.SymDense {
	h := 2 * v.Scale
	return mat.NewSymDense(2, []float64{h, h, h, h})
}

// Saddle is f(x, y) = x² − y² + y⁴. The origin is a saddle point; the minima
// are at (0, ±1/√2). Near y = 0 the Hessian is indefinite and the plain Newton
// step points uphill.
type Saddle struct{}

// Name implements Objective.
func (Saddle) Name() string { return "saddle" }

// Dim implements Objective.
func (Saddle) Dim() int { return 2 }

// Value implements optimization.Function.
func (Saddle) Value(x []float64) float64 {
	y2 := x[1] * x[1]
	return x[0]*x[0] - y2 + y2*y2
}

// Gradient implements optimization.Function.
func (Saddle) Gradient(x []float64) []float64 {
	return []float64{2 * x[0], -2*x[1] + 4*x[1]*x[1]*x[1]}
}

// Hessian implements optimization.TwiceDifferentiable.
func (Saddle) Hessian(x []float64) *mat.SymDense {
	return mat.NewSymDense(2, []float64{2, 0, 0, -2 + 12*x[1]*x[1]})
}

// ExpWall is f(x, y) = exp(r·x) + y². It has no minimizer and its derivatives
// overflow to +Inf for large x, which exercises the non-finite paths.
type ExpWall struct {
	Rate float64
}

// Name implements Objective.
func (ExpWall) Name() string { return "exp-wall" }

// Dim implements Objective.
func (ExpWall) Dim() int { return 2 }

// Value implements optimization.Function.
func (w ExpWall) Value(x []float64) float64 {
	return math.Exp(w.Rate*x[0]) + x[1]*x[1]
}

// Gradient implements optimization.Function.
func (w ExpWall) Gradient(x []float64) []float64 {
	return []float64{w.Rate * math.Exp(w.Rate*x[0]), 2 * x[1]}
}

// Hessian implements optimization.TwiceDifferentiable.
func (w ExpWall) Hessian(x []float64) *mat.SymDense {
	return mat.NewSymDense(2, []float64{w.Rate * w.Rate * math.Exp(w.Rate*x[0]), 0, 0, 2})
}
