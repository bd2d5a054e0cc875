package optimization

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// AssertFloat64SlicesEqual fails the test if got and want differ by more than tol
// in any coordinate.
func AssertFloat64SlicesEqual(t testing.TB, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// AssertMatEqual fails the test if the matrices differ in shape or by more than
// tol in any entry.
func AssertMatEqual(t testing.TB, got, want mat.Matrix, tol float64) {
	t.Helper()

	rg, cg := got.Dims()
	rw, cw := want.Dims()
	if rg != rw || cg != cw {
		t.Fatalf("matrix dimensions mismatch: got %dx%d, want %dx%d", rg, cg, rw, cw)
	}

	for i := 0; i < rg; i++ {
		for j := 0; j < cg; j++ {
			g := got.At(i, j)
			w := want.At(i, j)
			if math.Abs(g-w) > tol {
				t.Fatalf("at (%d,%d): got %v, want %v (tolerance %v)", i, j, g, w, tol)
			}
		}
	}
}

// AssertTrajectoryInvariants checks the bookkeeping every run must satisfy:
// one trajectory point per accepted iteration plus the start, all with finite
// objective values, and a final point equal to the last trajectory entry.
func AssertTrajectoryInvariants(t testing.TB, f Function, res *RunResult) {
	t.Helper()

	if len(res.Trajectory) != res.Iterations+1 {
		t.Fatalf("trajectory length %d, want iterations+1 = %d", len(res.Trajectory), res.Iterations+1)
	}
	if len(res.Steps) != res.Iterations {
		t.Fatalf("recorded %d steps for %d iterations", len(res.Steps), res.Iterations)
	}
	for i, p := range res.Trajectory {
		if v := f.Value(p); !IsFinite(v) {
			t.Fatalf("trajectory point %d %v has non-finite value %v", i, p, v)
		}
	}
	AssertFloat64SlicesEqual(t, res.X, res.Trajectory.Last(), 0)
	if !IsFinite(res.F) {
		t.Fatalf("final value %v is not finite", res.F)
	}
}

// QuadraticBowl returns f(x) = Σ scale_i·x_i² with its analytic derivatives.
func QuadraticBowl(scale ...float64) Problem {
	return Problem{
		Func: func(x []float64) float64 {
			sum := 0.0
			for i, v := range x {
				sum += scale[i] * v * v
			}
			return sum
		},
		Grad: func(x []float64) []float64 {
			g := make([]float64, len(x))
			for i, v := range x {
				g[i] = 2 * scale[i] * v
			}
			return g
		},
		Hess: func(x []float64) *mat.SymDense {
			h := mat.NewSymDense(len(x), nil)
			for i := range x {
				h.SetSym(i, i, 2*scale[i])
			}
			return h
		},
	}
}
