package experiment

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/copyleftdev/descent/internal/metrics"
	"github.com/copyleftdev/descent/internal/optimization/gradient"
	"github.com/copyleftdev/descent/internal/optimization/newton"
	"github.com/copyleftdev/descent/internal/store"
)

func TestRunDefaultPlan(t *testing.T) {
	s := store.NewFileStore(filepath.Join(t.TempDir(), "results.json"), nil)
	r := NewRunner(s, metrics.New(prometheus.NewRegistry()), zaptest.NewLogger(t))
	plan := DefaultPlan()

	records, err := r.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, records, 18)

	for i, rec := range records {
		assert.Equal(t, 200, rec.MaxIterations)
		assert.LessOrEqual(t, rec.Result.Iterations, 200)
		assert.GreaterOrEqual(t, rec.Result.Value, 0.0)
		if i%2 == 0 {
			assert.Equal(t, gradient.Name, rec.Algorithm)
			assert.Equal(t, store.Fixed(plan.Steps[(i/2)%3]), rec.StepParameter)
		} else {
			assert.Equal(t, newton.Name, rec.Algorithm)
			assert.Equal(t, store.Auto, rec.StepParameter)
			assert.True(t, rec.Result.Converged, "newton from %v", rec.InitialPoint)
		}
	}

	persisted, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, records, persisted)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := NewRunner(nil, nil, nil).Run(ctx, DefaultPlan())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
}

func TestRunRejectsBadPlans(t *testing.T) {
	r := NewRunner(nil, nil, nil)

	tests := map[string]Plan{
		"unknown objective": {Objective: "nope", Starts: [][]float64{{0, 0}}, Steps: []float64{0.1}, MaxIterations: 1},
		"no starts":         {Objective: "quadratic", Steps: []float64{0.1}, MaxIterations: 1},
		"no steps":          {Objective: "quadratic", Starts: [][]float64{{0, 0}}, MaxIterations: 1},
		"wrong dimension":   {Objective: "quadratic", Starts: [][]float64{{0, 0, 0}}, Steps: []float64{0.1}, MaxIterations: 1},
		"negative step":     {Objective: "quadratic", Starts: [][]float64{{0, 0}}, Steps: []float64{-0.1}, MaxIterations: 1},
		"no iterations":     {Objective: "quadratic", Starts: [][]float64{{0, 0}}, Steps: []float64{0.1}},
	}
	for name, plan := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := r.Run(context.Background(), plan)
			assert.Error(t, err)
		})
	}
}

func TestSummarize(t *testing.T) {
	rec := func(algorithm string, iterations int, time, value float64, converged bool) store.Record {
		return store.Record{
			Algorithm: algorithm,
			Result:    store.Result{Iterations: iterations, Time: time, Value: value, Converged: converged},
		}
	}
	records := []store.Record{
		rec("newton", 1, 0.1, 0.5, true),
		rec("gradient-descent", 200, 1.0, 2.0, false),
		rec("newton", 2, 0.2, 0.0, true),
		rec("newton", 3, 0.3, 1.0, false),
	}

	summaries := Summarize(records)
	require.Len(t, summaries, 2)

	gd := summaries[0]
	assert.Equal(t, "gradient-descent", gd.Algorithm)
	assert.Equal(t, 1, gd.Runs)
	assert.Equal(t, 0, gd.Converged)
	assert.Equal(t, 200.0, gd.MeanIterations)
	assert.Equal(t, 0.0, gd.StdIterations)

	n := summaries[1]
	assert.Equal(t, "newton", n.Algorithm)
	assert.Equal(t, 3, n.Runs)
	assert.Equal(t, 2, n.Converged)
	assert.InDelta(t, 2.0, n.MeanIterations, 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/3.0), n.StdIterations, 1e-12)
	assert.InDelta(t, 0.2, n.MeanTime, 1e-12)
	assert.InDelta(t, 0.5, n.MeanValue, 1e-12)
	assert.Equal(t, 0.0, n.BestValue)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}
