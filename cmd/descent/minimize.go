package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/gradient"
	"github.com/copyleftdev/descent/internal/optimization/newton"
	"github.com/copyleftdev/descent/internal/optimization/numdiff"
	"github.com/copyleftdev/descent/internal/optimization/objectives"
)

func newMinimizeCmd(a *app) *cobra.Command {
	var (
		algorithm  string
		objective  string
		start      []float64
		step       float64
		maxIter    int
		numeric    bool
		trajectory bool
	)

	cmd := &cobra.Command{
		Use:   "minimize",
		Short: "Run a single minimization and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := objectives.Lookup(objective)
			if err != nil {
				return err
			}
			if len(start) != obj.Dim() {
				return fmt.Errorf("objective %s needs a %d-dimensional start, got %d", obj.Name(), obj.Dim(), len(start))
			}
			var f optimization.TwiceDifferentiable = obj
			if numeric {
				f = numdiff.New(obj.Value, nil)
			}

			var res *optimization.RunResult
			switch algorithm {
			case gradient.Name:
				cfg := a.cfg.GradientDescent()
				if cmd.Flags().Changed("step") {
					cfg.InitialStep = step
				}
				if maxIter > 0 {
					cfg.MaxIterations = maxIter
				}
				res, err = gradient.New(cfg, a.logger).Minimize(f, start)
			case newton.Name:
				if cmd.Flags().Changed("step") {
					return fmt.Errorf("--step applies to %s only", gradient.Name)
				}
				cfg := a.cfg.Newton()
				if maxIter > 0 {
					cfg.MaxIterations = maxIter
				}
				res, err = newton.New(cfg, a.logger).Minimize(f, start)
			default:
				return fmt.Errorf("unknown algorithm %q (want %s or %s)", algorithm, gradient.Name, newton.Name)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if trajectory {
				for i, x := range res.Trajectory {
					fmt.Fprintf(out, "%4d %s f=%.10g\n", i, formatPoint(x), obj.Value(x))
				}
			}
			fmt.Fprintf(out, "algorithm:    %s\n", algorithm)
			fmt.Fprintf(out, "reason:       %s\n", res.Reason)
			fmt.Fprintf(out, "minimum:      %s\n", formatPoint(res.X))
			fmt.Fprintf(out, "value:        %.10g\n", res.F)
			fmt.Fprintf(out, "gradient:     %.3e\n", res.GradNorm)
			fmt.Fprintf(out, "iterations:   %d\n", res.Iterations)
			fmt.Fprintf(out, "forced steps: %d\n", res.ForcedSteps)
			fmt.Fprintf(out, "time:         %.6fs\n", res.ElapsedSeconds())
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", newton.Name, "Minimizer to use (gradient-descent, newton)")
	cmd.Flags().StringVar(&objective, "objective", "coupled-cubic", "Objective to minimize")
	cmd.Flags().Float64SliceVar(&start, "start", []float64{1, -1}, "Start point as comma separated coordinates")
	cmd.Flags().Float64Var(&step, "step", 1, "Gradient descent initial step length")
	cmd.Flags().IntVar(&maxIter, "max-iter", 0, "Iteration cap; defaults to the configured cap")
	cmd.Flags().BoolVar(&numeric, "numeric", false, "Use finite-difference derivatives")
	cmd.Flags().BoolVar(&trajectory, "trajectory", false, "Print every accepted point")
	return cmd
}
