package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/descent/internal/optimization"
)

func TestObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRun("newton", &optimization.RunResult{Iterations: 7, Elapsed: time.Millisecond, Reason: optimization.Converged})
	m.ObserveRun("newton", &optimization.RunResult{Iterations: 0, Reason: optimization.NoDescentDirection})
	m.ObserveRun("gradient-descent", &optimization.RunResult{Iterations: 200, ForcedSteps: 3, Reason: optimization.MaxIterations})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("newton", "converged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("newton", "no_descent_direction")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.forcedSteps.WithLabelValues("gradient-descent")))

	expected := `
# HELP descent_forced_steps_total Iterations that fell back to the minimal line-search step
# TYPE descent_forced_steps_total counter
descent_forced_steps_total{algorithm="gradient-descent"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "descent_forced_steps_total"))
}

func TestActiveJobs(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.JobStarted()
	m.JobStarted()
	m.JobFinished()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeJobs))
}
