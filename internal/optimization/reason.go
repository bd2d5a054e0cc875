package optimization

import "fmt"

// TerminationReason classifies how a run ended. Every value is a normal,
// reportable outcome; callers running many configurations must handle all of them.
type TerminationReason int

const (
	// Converged means the gradient norm fell below the tolerance.
	Converged TerminationReason = iota
	// NonFiniteGradient means the oracle returned a NaN or Inf gradient entry.
	NonFiniteGradient
	// NonFiniteHessian means the oracle returned a NaN or Inf Hessian entry.
	NonFiniteHessian
	// MaxIterations means the iteration cap was reached.
	MaxIterations
	// NoDescentDirection means Newton exhausted its regularization attempts
	// without an accepted step.
	NoDescentDirection
	// ForcedStepDiverged means the line search fell back to the minimal
	// step and the resulting point had a non-finite objective value.
	ForcedStepDiverged
)

var reasonNames = map[TerminationReason]string{
	Converged:          "converged",
	NonFiniteGradient:  "non_finite_gradient",
	NonFiniteHessian:   "non_finite_hessian",
	MaxIterations:      "max_iterations",
	NoDescentDirection: "no_descent_direction",
	ForcedStepDiverged: "forced_step_diverged",
}

func (r TerminationReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("TerminationReason(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r TerminationReason) MarshalText() ([]byte, error) {
	if _, ok := reasonNames[r]; !ok {
		return nil, fmt.Errorf("unknown termination reason %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *TerminationReason) UnmarshalText(text []byte) error {
	for reason, name := range reasonNames {
		if name == string(text) {
			*r = reason
			return nil
		}
	}
	return fmt.Errorf("unknown termination reason %q", text)
}
