package optimization

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Function is the first-order oracle consumed by every minimizer.
// Implementations must be pure and must tolerate evaluation at any real point,
// returning NaN or Inf rather than panicking where the function is undefined.
type Function interface {
	// Value returns f(x).
	Value(x []float64) float64

	// Gradient returns ∇f(x) as a freshly allocated slice.
	Gradient(x []float64) []float64
}

// TwiceDifferentiable is the oracle required by second-order minimizers.
type TwiceDifferentiable interface {
	Function

	// Hessian returns ∇²f(x) as a freshly allocated symmetric matrix.
	Hessian(x []float64) *mat.SymDense
}

// Minimizer is implemented by the optimizers in the sub-packages.
type Minimizer interface {
	// Name returns the algorithm name recorded with persisted results.
	Name() string
}

// Point is a candidate solution in R^n.
type Point []float64

// Clone returns a copy of p.
func (p Point) Clone() Point {
	return append(Point(nil), p...)
}

// Trajectory is the sequence of accepted points of a run, starting with the
// initial point. Points are copied on append and never modified afterwards.
type Trajectory []Point

// Append returns the trajectory extended with a copy of x.
func (t Trajectory) Append(x []float64) Trajectory {
	return append(t, Point(x).Clone())
}

// Last returns the most recently accepted point.
func (t Trajectory) Last() Point {
	if len(t) == 0 {
		return nil
	}
	return t[len(t)-1]
}

// StepInfo describes one accepted iteration.
type StepInfo struct {
	// Step is the accepted step length α.
	Step float64
	// Trials is the number of objective evaluations spent by the line search.
	Trials int
	// Forced is set when the line search gave up and took the fallback step.
	Forced bool
	// Mu is the regularization strength of the accepted Newton step (0 for
	// first-order methods).
	Mu float64
}

// RunResult is the outcome of a single Minimize call. It is owned by the
// caller and never shared with other runs.
type RunResult struct {
	X          Point
	F          float64
	Trajectory Trajectory
	Steps      []StepInfo

	// Iterations is the number of accepted iterations, len(Trajectory)-1.
	Iterations int

	// GradNorm is the norm of the last gradient evaluated. It is NaN when that
	// gradient was not finite.
	GradNorm float64

	// ForcedSteps counts accepted iterations that used the line-search fallback.
	ForcedSteps int

	Elapsed time.Duration
	Reason  TerminationReason
}

// ElapsedSeconds returns the wall time of the run in seconds.
func (r *RunResult) ElapsedSeconds() float64 {
	return r.Elapsed.Seconds()
}

// Converged reports whether the run stopped on the gradient tolerance.
func (r *RunResult) Converged() bool {
	return r.Reason == Converged
}
