package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/copyleftdev/descent/internal/optimization"
)

func sampleRecord(algorithm string, iterations int) Record {
	return Record{
		Algorithm:     algorithm,
		InitialPoint:  []float64{2, -3},
		StepParameter: Fixed(0.05),
		MaxIterations: 200,
		Result: Result{
			Minimum:    []float64{0, 0.01},
			Value:      1e-12,
			Iterations: iterations,
			Time:       0.002,
			Converged:  true,
		},
	}
}

func TestAppendAndLoad(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nested", "results.json"), nil)

	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotNil(t, records)

	require.NoError(t, s.Append(sampleRecord("gradient-descent", 10)))
	require.NoError(t, s.Append(sampleRecord("newton", 3), sampleRecord("newton", 4)))

	records, err = s.Load()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "gradient-descent", records[0].Algorithm)
	assert.Equal(t, 3, records[1].Result.Iterations)
	assert.Equal(t, 4, records[2].Result.Iterations)

	_, err = os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must not be left behind")
}

func TestCorruptContainerIsTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewFileStore(path, zap.New(core))

	records, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, s.Append(sampleRecord("newton", 1)))
	records, err = s.Load()
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, logs.Len())
}

func TestEmptyFileIsTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	records, err := NewFileStore(path, nil).Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestConcurrentAppends(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "results.json"), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(sampleRecord("newton", i)))
		}(i)
	}
	wg.Wait()

	records, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestRecordLayout(t *testing.T) {
	rec := sampleRecord("newton", 7)
	rec.StepParameter = Auto

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"algorithm": "newton",
		"initial_point": [2, -3],
		"step_parameter": "auto",
		"max_iterations": 200,
		"result": {
			"minimum": [0, 0.01],
			"value": 1e-12,
			"iterations": 7,
			"time": 0.002,
			"converged": true
		}
	}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
}

func TestStepParameterJSON(t *testing.T) {
	var p StepParameter

	require.NoError(t, json.Unmarshal([]byte(`0.1`), &p))
	assert.Equal(t, Fixed(0.1), p)
	assert.Equal(t, "0.1", p.String())

	require.NoError(t, json.Unmarshal([]byte(`"auto"`), &p))
	assert.Equal(t, Auto, p)
	assert.Equal(t, "auto", p.String())

	assert.Error(t, json.Unmarshal([]byte(`"fast"`), &p))
	assert.Error(t, json.Unmarshal([]byte(`true`), &p))
}

func TestNewRecord(t *testing.T) {
	x0 := []float64{1, -1}
	res := &optimization.RunResult{
		X:          optimization.Point{0, 0},
		F:          0,
		Iterations: 5,
		Elapsed:    1500 * time.Millisecond,
		Reason:     optimization.MaxIterations,
	}

	rec := NewRecord("gradient-descent", x0, Fixed(1), 5, res)
	x0[0] = 9

	assert.Equal(t, []float64{1, -1}, rec.InitialPoint)
	assert.Equal(t, 5, rec.Result.Iterations)
	assert.Equal(t, 1.5, rec.Result.Time)
	assert.False(t, rec.Result.Converged, "hitting the cap is not convergence")

	res.Reason = optimization.Converged
	assert.True(t, NewRecord("newton", x0, Auto, 5, res).Result.Converged)
}
