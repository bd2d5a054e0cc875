// Package newton implements a damped Newton method with Hessian regularization.
//
// Each iteration solves (H + μI)d = −g, starting μ at a small seed. When the
// system is too ill-conditioned to solve, when d is not a descent direction,
// or when no damped step along d satisfies the Armijo condition, μ is
// multiplied by a growth factor and the solve is retried. Large μ turns the
// step into a short gradient step, so escalation trades curvature information
// for robustness.
package newton

import (
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/linesearch"
)

// Name identifies the algorithm in logs and persisted results.
const Name = "newton"

// Config holds the tunable parameters of a run.
type Config struct {
	Tolerance float64
	Decrease  float64

	RegularizationSeed   float64
	RegularizationGrowth float64

	// MaxCondition is the largest condition estimate of H + μI accepted by
	// the solve.
	MaxCondition float64

	MaxIterations          int
	RegularizationAttempts int
	// DampingAttempts is the number of step lengths 1, ½, ¼, … tried per solve.
	DampingAttempts int
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		Tolerance:              1e-6,
		Decrease:               1e-4,
		RegularizationSeed:     1e-6,
		RegularizationGrowth:   10,
		MaxCondition:           1e10,
		MaxIterations:          200,
		RegularizationAttempts: 10,
		DampingAttempts:        30,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DampingAttempts < 1 {
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "damping attempts %d must be at least 1", c.DampingAttempts)
	}
	if err := c.damping().Validate(); err != nil {
		return err
	}
	switch {
	case !(c.Tolerance > 0):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "tolerance %v must be positive", c.Tolerance)
	case !(c.RegularizationSeed > 0) || math.IsInf(c.RegularizationSeed, 0):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "regularization seed %v must be positive", c.RegularizationSeed)
	case !(c.RegularizationGrowth > 1) || math.IsInf(c.RegularizationGrowth, 0):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "regularization growth %v must exceed 1", c.RegularizationGrowth)
	case !(c.MaxCondition >= 1):
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "max condition %v must be at least 1", c.MaxCondition)
	case c.MaxIterations < 1:
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "max iterations %d must be at least 1", c.MaxIterations)
	case c.RegularizationAttempts < 1:
		return optimization.WrapErrorf(optimization.ErrInvalidConfig, "regularization attempts %d must be at least 1", c.RegularizationAttempts)
	}
	return nil
}

func (c Config) damping() linesearch.Armijo {
	return linesearch.Damping(c.Decrease, c.DampingAttempts)
}

// Optimizer minimizes a TwiceDifferentiable function. It holds no per-run
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
		logger: logger.Named(Name),
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

// Minimize runs the regularized Newton method from x0.
func (o *Optimizer) Minimize(f optimization.TwiceDifferentiable, x0 []float64) (*optimization.RunResult, error) {
	const op = "Minimize"
	start := time.Now()

	if err := o.config.Validate(); err != nil {
		return nil, toError(err, op)
	}
	fx, err := optimization.CheckStart(f, x0)
	if err != nil {
		return nil, toError(err, op)
	}

	damping := o.config.damping()
	ws := newWorkspace(len(x0))

	x := optimization.Point(x0).Clone()
	res := &optimization.RunResult{
		Trajectory: optimization.Trajectory{}.Append(x),
	}

outer:
	for {
		g := f.Gradient(x)
		if !optimization.AllFinite(g) {
			res.GradNorm = math.NaN()
			res.Reason = optimization.NonFiniteGradient
			break
		}
		res.GradNorm = optimization.Norm(g)

		// Both derivatives must be finite before convergence is tested.
		h := f.Hessian(x)
		if !optimization.SymFinite(h) {
			res.Reason = optimization.NonFiniteHessian
			break
		}
		if res.GradNorm < o.config.Tolerance {
			res.Reason = optimization.Converged
			break
		}
		if res.Iterations >= o.config.MaxIterations {
			res.Reason = optimization.MaxIterations
			break
		}
		ws.setGradient(g)

		mu := o.config.RegularizationSeed
		for attempt := 1; attempt <= o.config.RegularizationAttempts; attempt, mu = attempt+1, mu*o.config.RegularizationGrowth {
			ws.regularize(h, mu)
			sol := ws.solve(o.config.MaxCondition)
			if !sol.ok {
				o.logger.Debug("Regularized solve failed, increasing regularization",
					zap.Int("iteration", res.Iterations),
					zap.Int("attempt", attempt),
					zap.Float64("mu", mu),
					zap.Float64("cond", sol.cond),
				)
				continue
			}

			slope := floats.Dot(g, sol.dir)
			if !(slope < 0) {
				o.logger.Debug("Newton direction is not a descent direction, increasing regularization",
					zap.Int("iteration", res.Iterations),
					zap.Int("attempt", attempt),
					zap.Float64("mu", mu),
					zap.Float64("slope", slope),
				)
				continue
			}

			ls := damping.Search(f, x, fx, sol.dir, slope, 1)
			if ls.Status != linesearch.Accepted {
				o.logger.Debug("Damping failed, increasing regularization",
					zap.Int("iteration", res.Iterations),
					zap.Int("attempt", attempt),
					zap.Float64("mu", mu),
					zap.Int("trials", ls.Trials),
				)
				continue
			}

			x, fx = ls.X, ls.F
			res.Trajectory = res.Trajectory.Append(x)
			res.Steps = append(res.Steps, optimization.StepInfo{
				Step:   ls.Step,
				Trials: ls.Trials,
				Mu:     mu,
			})
			res.Iterations++
			continue outer
		}

		o.logger.Warn("No descent direction found",
			zap.Int("iteration", res.Iterations),
			zap.Float64("f", fx),
			zap.Float64("grad_norm", res.GradNorm),
			zap.Float64("mu", mu/o.config.RegularizationGrowth),
		)
		res.Reason = optimization.NoDescentDirection
		break
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
