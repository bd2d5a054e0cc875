package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/descent/internal/experiment"
	"github.com/copyleftdev/descent/internal/store"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		resultsPath string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Summarize the runs in a results file per algorithm",
		RunE: func(cmd *cobra.Command, args []string) error {
			if resultsPath == "" {
				resultsPath = a.cfg.Results.Path
			}
			records, err := store.NewFileStore(resultsPath, a.logger).Load()
			if err != nil {
				return fmt.Errorf("failed to load results: %w", err)
			}
			summaries := experiment.Summarize(records)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(summaries)
			}

			if len(summaries) == 0 {
				fmt.Fprintf(out, "no runs recorded in %s\n", resultsPath)
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ALGORITHM\tRUNS\tCONVERGED\tITERATIONS\tTIME (s)\tMEAN VALUE\tBEST VALUE")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f ± %.1f\t%.2e ± %.2e\t%.6g\t%.6g\n",
					s.Algorithm, s.Runs, s.Converged,
					s.MeanIterations, s.StdIterations,
					s.MeanTime, s.StdTime,
					s.MeanValue, s.BestValue,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&resultsPath, "results", "", "Results file; defaults to RESULTS_PATH")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the summaries as JSON")
	return cmd
}
