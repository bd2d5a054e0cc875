// Package experiment runs both minimizers over a grid of start points and
// step lengths and summarizes the persisted results.
package experiment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/copyleftdev/descent/internal/metrics"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/gradient"
	"github.com/copyleftdev/descent/internal/optimization/newton"
	"github.com/copyleftdev/descent/internal/optimization/objectives"
	"github.com/copyleftdev/descent/internal/store"
)

// Plan describes an experiment grid.
type Plan struct {
	Objective     string
	Starts        [][]float64
	Steps         []float64
	MaxIterations int
}

// DefaultPlan returns the reference grid on the coupled-cubic objective.
func DefaultPlan() Plan {
	return Plan{
		Objective:     "coupled-cubic",
		Starts:        [][]float64{{2, -3}, {-1, 1.5}, {0.5, 0.5}},
		Steps:         []float64{0.01, 0.05, 0.1},
		MaxIterations: 200,
	}
}

// Validate checks the plan against the objective's dimension.
func (p Plan) Validate(obj objectives.Objective) error {
	if len(p.Starts) == 0 {
		return fmt.Errorf("plan has no start points")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no step lengths")
	}
	if p.MaxIterations < 1 {
		return fmt.Errorf("max iterations %d must be at least 1", p.MaxIterations)
	}
	for _, x0 := range p.Starts {
		if len(x0) != obj.Dim() {
			return fmt.Errorf("start %v has dimension %d, objective %s needs %d", x0, len(x0), obj.Name(), obj.Dim())
		}
	}
	for _, step := range p.Steps {
		if !(step > 0) {
			return fmt.Errorf("step %v must be positive", step)
		}
	}
	return nil
}

// Runner executes plans. Store and Metrics are optional.
type Runner struct {
	Gradient gradient.Config
	Newton   newton.Config
	Store    store.Store
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// NewRunner returns a runner with the default optimizer parameters.
func NewRunner(s store.Store, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Gradient: gradient.DefaultConfig(),
		Newton:   newton.DefaultConfig(),
		Store:    s,
		Metrics:  m,
		Logger:   logger,
	}
}

// Run executes, for every (start, step) pair, gradient descent with that
// initial step followed by Newton with its automatic step. Runs execute
// sequentially and each record is persisted as soon as it is produced.
// Cancelling ctx stops the grid between runs.
func (r *Runner) Run(ctx context.Context, plan Plan) ([]store.Record, error) {
	obj, err := objectives.Lookup(plan.Objective)
	if err != nil {
		return nil, err
	}
	if err := plan.Validate(obj); err != nil {
		return nil, err
	}
	logger := r.logger().With(zap.String("objective", obj.Name()))

	gdConfig := r.Gradient
	gdConfig.MaxIterations = plan.MaxIterations
	nConfig := r.Newton
	nConfig.MaxIterations = plan.MaxIterations
	nOpt := newton.New(nConfig, logger)

	var records []store.Record
	for _, x0 := range plan.Starts {
		for _, step := range plan.Steps {
			if err := ctx.Err(); err != nil {
				return records, err
			}

			cfg := gdConfig
			cfg.InitialStep = step
			res, err := gradient.New(cfg, logger).Minimize(obj, x0)
			if err != nil {
				return records, err
			}
			rec, err := r.record(gradient.Name, x0, store.Fixed(step), plan.MaxIterations, res)
			if err != nil {
				return records, err
			}
			records = append(records, rec)

			if err := ctx.Err(); err != nil {
				return records, err
			}

			res, err = nOpt.Minimize(obj, x0)
			if err != nil {
				return records, err
			}
			rec, err = r.record(newton.Name, x0, store.Auto, plan.MaxIterations, res)
			if err != nil {
				return records, err
			}
			records = append(records, rec)
		}
	}

	logger.Info("Experiment finished", zap.Int("runs", len(records)))
	return records, nil
}

func (r *Runner) record(algorithm string, x0 []float64, step store.StepParameter, maxIter int, res *optimization.RunResult) (store.Record, error) {
	r.logger().Debug("Run completed",
		zap.String("algorithm", algorithm),
		zap.Float64s("start", x0),
		zap.Stringer("step", step),
		zap.Stringer("reason", res.Reason),
		zap.Int("iterations", res.Iterations),
		zap.Float64("f", res.F),
	)
	if r.Metrics != nil {
		r.Metrics.ObserveRun(algorithm, res)
	}
	rec := store.NewRecord(algorithm, x0, step, maxIter, res)
	if r.Store != nil {
		if err := r.Store.Append(rec); err != nil {
			return rec, fmt.Errorf("persist %s run: %w", algorithm, err)
		}
	}
	return rec, nil
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
