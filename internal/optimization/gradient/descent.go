// Package gradient implements steepest descent with Armijo backtracking.
package gradient

import (
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/linesearch"
)

// Name identifies the algorithm in logs and persisted results.
const Name = "gradient-descent"

// Config holds the tunable parameters of a run. It is not modified by Minimize.
type Config struct {
	// InitialStep is the step length each line search starts from.
	InitialStep float64
	// MaxStep caps InitialStep.
	MaxStep float64
	// Shrink is the backtracking factor ρ in (0, 1).
	Shrink float64
	// Decrease is the Armijo constant m1.
	Decrease float64
	// Tolerance is the gradient-norm threshold for convergence.
	Tolerance float64
	// MaxIterations caps the number of accepted iterations.
	MaxIterations int
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		InitialStep:   1.0,
		MaxStep:       1e2,
		Shrink:        0.5,
		Decrease:      1e-4,
		Tolerance:     1e-6,
		MaxIterations: 5000,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.lineSearch().Validate(); err != nil {
		return err
	}
	switch {
	case !(c.InitialStep > 0) || math.IsInf(c.InitialStep, 0):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "initial step %v must be positive", c.InitialStep)
	case !(c.MaxStep > 0):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "max step %v must be positive", c.MaxStep)
	case !(c.Tolerance > 0):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "tolerance %v must be positive", c.Tolerance)
	case c.MaxIterations < 1:
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "max iterations %d must be at least 1", c.MaxIterations)
	}
	return nil
}

func (c Config) lineSearch() linesearch.Armijo {
	ls := linesearch.GradientDescent()
	ls.Shrink = c.Shrink
	ls.Decrease = c.Decrease
	return ls
}

// Optimizer minimizes a Function by steepest descent. It holds no per-run
// state and may be shared between goroutines.
type Optimizer struct {
	config Config
	logger *zap.Logger
}

// New creates an Optimizer. A nil logger disables logging.
func New(config Config, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		config: config,
		logger: logger.Named("gradient_descent"),
	}
}

// Name implements optimization.Minimizer.
func (o *Optimizer) Name() string {
	return Name
}

// Config returns the optimizer's configuration.
func (o *Optimizer) Config() Config {
	return o.config
}

// Minimize runs steepest descent from x0. Numerical failures end the run with
// a TerminationReason; an error is returned only for an invalid configuration
// or start point.
func (o *Optimizer) Minimize(f optimization.Function, x0 []float64) (*optimization.RunResult, error) {
	const op = "Minimize"
	start := time.Now()

	if err := o.config.Validate(); err != nil {
		return nil, toError(err, op)
	}
	fx, err := optimization.CheckStart(f, x0)
	if err != nil {
		return nil, toError(err, op)
	}

	search := o.config.lineSearch()
	step := math.Min(o.config.InitialStep, o.config.MaxStep)

	x := optimization.Point(x0).Clone()
	res := &optimization.RunResult{
		Trajectory: optimization.Trajectory{}.Append(x),
	}

	for {
		g := f.Gradient(x)
		if !optimization.AllFinite(g) {
			res.GradNorm = math.NaN()
			res.Reason = optimization.NonFiniteGradient
			break
		}

		res.GradNorm = optimization.Norm(g)
		if res.GradNorm < o.config.Tolerance {
			res.Reason = optimization.Converged
			break
		}
		if res.Iterations >= o.config.MaxIterations {
			res.Reason = optimization.MaxIterations
			break
		}

		d := make([]float64, len(g))
		floats.ScaleTo(d, -1, g)
		slope := floats.Dot(g, d)

		ls := search.Search(f, x, fx, d, slope, step)
		if ls.Status == linesearch.Forced {
			if math.IsInf(ls.F, 1) {
				o.logger.Warn("Forced minimal step diverged",
					zap.Int("iteration", res.Iterations),
					zap.Float64("grad_norm", res.GradNorm),
				)
				res.Reason = optimization.ForcedStepDiverged
				break
			}
			res.ForcedSteps++
			o.logger.Warn("Line search exhausted, forcing minimal step",
				zap.Int("iteration", res.Iterations),
				zap.Float64("step", ls.Step),
				zap.Float64("f", ls.F),
			)
		}

		x, fx = ls.X, ls.F
		res.Trajectory = res.Trajectory.Append(x)
		res.Steps = append(res.Steps, optimization.StepInfo{
			Step:   ls.Step,
			Trials: ls.Trials,
			Forced: ls.Status == linesearch.Forced,
		})
		res.Iterations++

		if res.Iterations%100 == 0 {
			o.logger.Debug("Iteration",
				zap.Int("iteration", res.Iterations),
				zap.Float64("f", fx),
				zap.Float64("grad_norm", res.GradNorm),
				zap.Float64("step", ls.Step),
			)
		}
	}

	res.X = res.Trajectory.Last()
	res.F = fx
	res.Elapsed = time.Since(start)

	o.logger.Debug("Run finished",
		zap.Stringer("reason", res.Reason),
		zap.Int("iterations", res.Iterations),
		zap.Float64("f", res.F),
		zap.Float64("grad_norm", res.GradNorm),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func toError(err error, op string) error {
	if e, ok := optimization.IsOptimizationError(err); ok {
		return e.WithComponent(Name).WithOperation(op)
	}
	return optimization.WrapError(err, "").WithComponent(Name).WithOperation(op)
}
