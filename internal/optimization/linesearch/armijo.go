// Package linesearch implements bounded Armijo backtracking shared by the
// first- and second-order minimizers.
package linesearch

import (
	"math"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Status reports how a search ended.
type Status int

const (
	// Accepted means a step satisfying the sufficient-decrease condition was found.
	Accepted Status = iota
	// Forced means backtracking was exhausted and the fallback step was taken
	// regardless of the resulting value.
	Forced
	// Exhausted means backtracking was exhausted and no fallback is configured.
	Exhausted
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Forced:
		return "forced"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

const (
	gdDecrease      = 1e-4
	gdShrink        = 0.5
	gdMinStep       = 1e-12
	gdMaxReductions = 60
	gdFallbackStep  = 1e-8

	dampingShrink = 0.5
)

// Armijo selects a step length α > 0 along a descent direction d such that
//
//	f(x + αd) ≤ f(x) + Decrease·α·(gᵀd)
//
// by repeatedly multiplying α by Shrink. The search always terminates: once α
// drops below MinStep or more than MaxReductions reductions have been made it
// either forces FallbackStep (when positive) or reports Exhausted.
type Armijo struct {
	// Decrease is the sufficient-decrease constant m1, in (0, 1).
	Decrease float64
	// Shrink is the backtracking factor ρ, in (0, 1).
	Shrink float64
	// MinStep is the smallest α tried before giving up. Zero disables the check.
	MinStep float64
	// MaxReductions bounds the number of times α is shrunk.
	MaxReductions int
	// FallbackStep is the step taken when backtracking is exhausted. Zero means
	// the search reports Exhausted instead.
	FallbackStep float64
}

// GradientDescent returns the backtracking rule used by steepest descent:
// halving, m1 = 1e-4, giving up below 1e-12 or after 60 reductions and then
// forcing a step of 1e-8.
func GradientDescent() Armijo {
	return Armijo{
		Decrease:      gdDecrease,
		Shrink:        gdShrink,
		MinStep:       gdMinStep,
		MaxReductions: gdMaxReductions,
		FallbackStep:  gdFallbackStep,
	}
}

// Damping returns the rule used to damp a Newton step: halving from the given
// decrease constant for at most attempts trial evaluations, with no fallback.
func Damping(decrease float64, attempts int) Armijo {
	return Armijo{
		Decrease:      decrease,
		Shrink:        dampingShrink,
		MaxReductions: attempts - 1,
	}
}

// Validate checks the parameters.
func (a Armijo) Validate() error {
	switch {
	case !(a.Shrink > 0 && a.Shrink < 1):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "shrink factor %v not in (0,1)", a.Shrink)
	case !(a.Decrease > 0 && a.Decrease < 1):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "sufficient-decrease constant %v not in (0,1)", a.Decrease)
	case a.MaxReductions < 0:
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "max reductions %d is negative", a.MaxReductions)
	case !(a.MinStep >= 0) || math.IsInf(a.MinStep, 0):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "minimum step %v is invalid", a.MinStep)
	case !(a.FallbackStep >= 0) || math.IsInf(a.FallbackStep, 0):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "fallback step %v is invalid", a.FallbackStep)
	}
	return nil
}

// Result is the outcome of a search.
type Result struct {
	// Step is the accepted (or forced) step length.
	Step float64
	// X is x + Step·d. It is nil when Status is Exhausted.
	X []float64
	// F is the safe-evaluated objective value at X (+Inf if non-finite).
	F float64
	// Trials counts objective evaluations, including a forced one.
	Trials int
	Status Status
}

// Search runs backtracking from step along dir. fx is f(x) and slope is the
// directional derivative gᵀd, expected to be negative. Non-finite trial values
// always fail the decrease test.
func (a Armijo) Search(f optimization.Function, x []float64, fx float64, dir []float64, slope, step float64) Result {
	alpha := step
	trials := 0
	reductions := 0
	for {
		xNew := optimization.Step(x, dir, alpha)
		fNew := optimization.SafeValue(f, xNew)
		trials++
		if !math.IsInf(fNew, 1) && fNew <= fx+a.Decrease*alpha*slope {
			return Result{Step: alpha, X: xNew, F: fNew, Trials: trials, Status: Accepted}
		}

		alpha *= a.Shrink
		reductions++
		if alpha < a.MinStep || reductions > a.MaxReductions {
			break
		}
	}

	if a.FallbackStep <= 0 {
		return Result{Step: 0, F: math.Inf(1), Trials: trials, Status: Exhausted}
	}
	xNew := optimization.Step(x, dir, a.FallbackStep)
	return Result{
		Step:   a.FallbackStep,
		X:      xNew,
		F:      optimization.SafeValue(f, xNew),
		Trials: trials + 1,
		Status: Forced,
	}
}
