package experiment

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/descent/internal/store"
)

// Summary aggregates the records of one algorithm. Standard deviations are
// population deviations.
type Summary struct {
	Algorithm      string  `json:"algorithm"`
	Runs           int     `json:"runs"`
	Converged      int     `json:"converged"`
	MeanIterations float64 `json:"mean_iterations"`
	StdIterations  float64 `json:"std_iterations"`
	MeanTime       float64 `json:"mean_time"`
	StdTime        float64 `json:"std_time"`
	MeanValue      float64 `json:"mean_value"`
	BestValue      float64 `json:"best_value"`
}

// Summarize groups records by algorithm, sorted by algorithm name.
func Summarize(records []store.Record) []Summary {
	groups := make(map[string][]store.Record)
	for _, rec := range records {
		groups[rec.Algorithm] = append(groups[rec.Algorithm], rec)
	}

	summaries := make([]Summary, 0, len(groups))
	for algorithm, recs := range groups {
		iterations := make([]float64, len(recs))
		times := make([]float64, len(recs))
		values := make([]float64, len(recs))
		converged := 0
		for i, rec := range recs {
			iterations[i] = float64(rec.Result.Iterations)
			times[i] = rec.Result.Time
			values[i] = rec.Result.Value
			if rec.Result.Converged {
				converged++
			}
		}

		s := Summary{
			Algorithm: algorithm,
			Runs:      len(recs),
			Converged: converged,
			MeanValue: stat.Mean(values, nil),
			BestValue: floats.Min(values),
		}
		s.MeanIterations, s.StdIterations = stat.PopMeanStdDev(iterations, nil)
		s.MeanTime, s.StdTime = stat.PopMeanStdDev(times, nil)
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Algorithm < summaries[j].Algorithm
	})
	return summaries
}
