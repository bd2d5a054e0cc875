package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/descent/internal/experiment"
	"github.com/copyleftdev/descent/internal/store"
)

func newRunCmd(a *app) *cobra.Command {
	defaults := experiment.DefaultPlan()
	var (
		objective   string
		starts      []string
		steps       []float64
		maxIter     int
		resultsPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run both minimizers over a grid of start points and step lengths",
		Long: `Runs gradient descent for every (start, step) pair followed by Newton from
the same start, and appends every run to the results file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := experiment.Plan{
				Objective:     objective,
				Steps:         steps,
				MaxIterations: maxIter,
			}
			for _, s := range starts {
				x0, err := parsePoint(s)
				if err != nil {
					return err
				}
				plan.Starts = append(plan.Starts, x0)
			}

			if resultsPath == "" {
				resultsPath = a.cfg.Results.Path
			}
			runner := experiment.NewRunner(store.NewFileStore(resultsPath, a.logger), nil, a.logger)
			runner.Gradient = a.cfg.GradientDescent()
			runner.Newton = a.cfg.Newton()

			a.logger.Sugar().Infow("Starting experiment",
				"objective", plan.Objective,
				"starts", len(plan.Starts),
				"steps", len(plan.Steps),
				"results", resultsPath,
			)

			records, err := runner.Run(cmd.Context(), plan)
			out := cmd.OutOrStdout()
			for _, rec := range records {
				fmt.Fprintf(out, "%-16s start=%s step=%-5s iterations=%-4d value=%-12.6g converged=%-5t time=%.4fs\n",
					rec.Algorithm,
					formatPoint(rec.InitialPoint),
					rec.StepParameter,
					rec.Result.Iterations,
					rec.Result.Value,
					rec.Result.Converged,
					rec.Result.Time,
				)
			}
			return err
		},
	}

	defaultStarts := make([]string, len(defaults.Starts))
	for i, x0 := range defaults.Starts {
		defaultStarts[i] = joinPoint(x0)
	}

	cmd.Flags().StringVar(&objective, "objective", defaults.Objective, "Objective to minimize")
	cmd.Flags().StringArrayVar(&starts, "start", defaultStarts, "Start point as comma separated coordinates (repeatable)")
	cmd.Flags().Float64SliceVar(&steps, "step", defaults.Steps, "Gradient descent initial step lengths")
	cmd.Flags().IntVar(&maxIter, "max-iter", defaults.MaxIterations, "Iteration cap for both minimizers")
	cmd.Flags().StringVar(&resultsPath, "results", "", "Results file; defaults to RESULTS_PATH")
	return cmd
}
