package gradient

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/objectives"
)

func TestMinimizeCoupledCubic(t *testing.T) {
	f := objectives.CoupledCubic{}
	x0 := []float64{1, -1}

	res, err := New(DefaultConfig(), zaptest.NewLogger(t)).Minimize(f, x0)
	require.NoError(t, err)

	assert.Equal(t, optimization.Converged, res.Reason)
	assert.True(t, res.Converged())
	assert.Less(t, res.GradNorm, 1e-6)
	assert.GreaterOrEqual(t, res.F, 0.0)
	assert.InDelta(t, 0, res.F, 1e-6)
	assert.Less(t, res.F, f.Value(x0))
	assert.Zero(t, res.ForcedSteps)
	assert.Equal(t, []float64{1, -1}, x0, "start point must not be modified")
	optimization.AssertTrajectoryInvariants(t, f, res)
}

func TestMinimizeQuadratic(t *testing.T) {
	q := objectives.DefaultQuadratic()
	want, err := q.Minimizer()
	require.NoError(t, err)

	starts := [][]float64{{0, 0}, {5, -5}, {-10, 3}, {100, 100}}
	for _, x0 := range starts {
		res, err := New(DefaultConfig(), nil).Minimize(q, x0)
		require.NoError(t, err)

		assert.Equal(t, optimization.Converged, res.Reason, "start %v", x0)
		optimization.AssertFloat64SlicesEqual(t, res.X, want, 1e-5)
		optimization.AssertTrajectoryInvariants(t, q, res)
	}
}

func TestMinimizeValuesNeverIncrease(t *testing.T) {
	f := objectives.Rosenbrock{}
	cfg := DefaultConfig()
	cfg.MaxIterations = 500

	res, err := New(cfg, nil).Minimize(f, []float64{-1.2, 1})
	require.NoError(t, err)

	prev := math.Inf(1)
	for i, p := range res.Trajectory {
		v := f.Value(p)
		assert.LessOrEqual(t, v, prev, "value increased at point %d", i)
		prev = v
	}
	for _, s := range res.Steps {
		assert.False(t, s.Forced)
		assert.Greater(t, s.Step, 0.0)
		assert.LessOrEqual(t, s.Step, cfg.InitialStep)
	}
}

func TestMinimizeAtMinimizer(t *testing.T) {
	q := objectives.DefaultQuadratic()

	res, err := New(DefaultConfig(), nil).Minimize(q, []float64{0.6, -0.8})
	require.NoError(t, err)

	assert.Equal(t, optimization.Converged, res.Reason)
	assert.Zero(t, res.Iterations)
	require.Len(t, res.Trajectory, 1)
	assert.Equal(t, optimization.Point{0.6, -0.8}, res.Trajectory[0])
	assert.Empty(t, res.Steps)
}

func TestMinimizeIsDeterministic(t *testing.T) {
	opt := New(DefaultConfig(), nil)
	f := objectives.CoupledCubic{}

	first, err := opt.Minimize(f, []float64{2, -3})
	require.NoError(t, err)
	second, err := opt.Minimize(f, []float64{2, -3})
	require.NoError(t, err)

	assert.Equal(t, first.X, second.X)
	assert.Equal(t, first.F, second.F)
	assert.Equal(t, first.Iterations, second.Iterations)
	assert.Equal(t, first.Trajectory, second.Trajectory)
	assert.Equal(t, first.Reason, second.Reason)
}

func TestMinimizeIterationCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIterations = 3

	res, err := New(cfg, nil).Minimize(objectives.DefaultQuadratic(), []float64{5, -5})
	require.NoError(t, err)

	assert.Equal(t, optimization.MaxIterations, res.Reason)
	assert.Equal(t, 3, res.Iterations)
	assert.Greater(t, res.GradNorm, cfg.Tolerance)
	assert.Len(t, res.Trajectory, 4)
}

func TestMinimizeForcesMinimalStep(t *testing.T) {
	// The oracle reports the negated gradient, so every search direction is
	// uphill and backtracking can never succeed.
	f := optimization.Problem{
		Func: func(x []float64) float64 { return x[0] * x[0] },
		Grad: func(x []float64) []float64 { return []float64{-2 * x[0]} },
	}
	core, logs := observer.New(zapcore.WarnLevel)
	cfg := DefaultConfig()
	cfg.MaxIterations = 3

	res, err := New(cfg, zap.New(core)).Minimize(f, []float64{1})
	require.NoError(t, err)

	assert.Equal(t, optimization.MaxIterations, res.Reason)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, res.ForcedSteps)
	for _, s := range res.Steps {
		assert.True(t, s.Forced)
		assert.Equal(t, 1e-8, s.Step)
		assert.Equal(t, 41, s.Trials)
	}
	assert.Greater(t, res.X[0], 1.0)
	assert.Equal(t, 3, logs.FilterMessage("Line search exhausted, forcing minimal step").Len())
	optimization.AssertTrajectoryInvariants(t, f, res)
}

func TestMinimizeForcedStepDiverges(t *testing.T) {
	f := optimization.Problem{
		Func: func(x []float64) float64 {
			if x[0] == 1 {
				return 1
			}
			return math.Inf(1)
		},
		Grad: func(x []float64) []float64 { return []float64{2 * x[0]} },
	}
	core, logs := observer.New(zapcore.WarnLevel)

	res, err := New(DefaultConfig(), zap.New(core)).Minimize(f, []float64{1})
	require.NoError(t, err)

	assert.Equal(t, optimization.ForcedStepDiverged, res.Reason)
	assert.Zero(t, res.Iterations)
	assert.Equal(t, optimization.Point{1}, res.X)
	assert.Equal(t, 1.0, res.F)
	assert.Equal(t, 1, logs.FilterMessage("Forced minimal step diverged").Len())
}

func TestMinimizeNonFiniteGradient(t *testing.T) {
	// exp(709.4) is finite but twice it overflows.
	f := objectives.ExpWall{Rate: 2}

	res, err := New(DefaultConfig(), nil).Minimize(f, []float64{354.7, 0})
	require.NoError(t, err)

	assert.Equal(t, optimization.NonFiniteGradient, res.Reason)
	assert.Zero(t, res.Iterations)
	assert.True(t, math.IsNaN(res.GradNorm))
	assert.Equal(t, optimization.Point{354.7, 0}, res.X)
	assert.True(t, optimization.IsFinite(res.F))
}

func TestMinimizeRejectsBadInput(t *testing.T) {
	f := objectives.DefaultQuadratic()

	tests := []struct {
		name    string
		config  Config
		x0      []float64
		wantErr error
	}{
		{name: "zero tolerance", config: func() Config { c := DefaultConfig(); c.Tolerance = 0; return c }(), x0: []float64{1, 1}, wantErr: optimization.ErrInvalidConfig},
		{name: "shrink above one", config: func() Config { c := DefaultConfig(); c.Shrink = 2; return c }(), x0: []float64{1, 1}, wantErr: optimization.ErrInvalidConfig},
		{name: "no iterations", config: func() Config { c := DefaultConfig(); c.MaxIterations = 0; return c }(), x0: []float64{1, 1}, wantErr: optimization.ErrInvalidConfig},
		{name: "negative step", config: func() Config { c := DefaultConfig(); c.InitialStep = -1; return c }(), x0: []float64{1, 1}, wantErr: optimization.ErrInvalidConfig},
		{name: "empty start", config: DefaultConfig(), x0: nil, wantErr: optimization.ErrEmptyStart},
		{name: "NaN start", config: DefaultConfig(), x0: []float64{math.NaN(), 0}, wantErr: optimization.ErrNonFiniteStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(tt.config, nil).Minimize(f, tt.x0)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)

			e, ok := optimization.IsOptimizationError(err)
			require.True(t, ok)
			assert.Equal(t, Name, e.Component)
			assert.Equal(t, "Minimize", e.Op)
		})
	}
}

func TestMaxStepCapsInitialStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialStep = 10
	cfg.MaxStep = 0.25

	res, err := New(cfg, nil).Minimize(optimization.QuadraticBowl(1, 1), []float64{1, 1})
	require.NoError(t, err)

	for _, s := range res.Steps {
		assert.LessOrEqual(t, s.Step, 0.25)
	}
}
