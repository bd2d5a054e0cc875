package newton

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
)

// workspace holds the matrices reused across the regularization attempts and
// iterations of a single Minimize call. It is never shared between calls.
type workspace struct {
	n   int
	reg *mat.SymDense
	rhs *mat.VecDense
	dir *mat.VecDense
	lu  mat.LU
}

func newWorkspace(n int) *workspace {
	return &workspace{
		n:   n,
		reg: mat.NewSymDense(n, nil),
		rhs: mat.NewVecDense(n, nil),
		dir: mat.NewVecDense(n, nil),
	}
}

// setGradient stores −g as the right-hand side of the Newton system.
func (w *workspace) setGradient(g []float64) {
	for i, v := range g {
		w.rhs.SetVec(i, -v)
	}
}

// regularize overwrites the system matrix with h + mu·I.
func (w *workspace) regularize(h *mat.SymDense, mu float64) {
	w.reg.CopySym(h)
	for i := 0; i < w.n; i++ {
		w.reg.SetSym(i, i, w.reg.At(i, i)+mu)
	}
}

// solution is the outcome of one regularized solve. A failed solve is an
// ordinary value that tells the caller to escalate the regularization.
type solution struct {
	dir  []float64
	cond float64
	ok   bool
}

// solve factorizes the current system and solves for the Newton direction.
// Systems that are singular or whose condition estimate exceeds maxCond fail.
func (w *workspace) solve(maxCond float64) solution {
	w.lu.Factorize(w.reg)
	cond := w.lu.Cond()
	if math.IsNaN(cond) || math.IsInf(cond, 0) || cond > maxCond {
		return solution{cond: cond}
	}
	if err := w.lu.SolveVecTo(w.dir, false, w.rhs); err != nil {
		return solution{cond: cond}
	}

	dir := make([]float64, w.n)
	copy(dir, w.dir.RawVector().Data)
	if !optimization.AllFinite(dir) {
		return solution{cond: cond}
	}
	return solution{dir: dir, cond: cond, ok: true}
}
