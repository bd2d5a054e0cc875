package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown", map[string]interface{}{"iteration": 3})
	logger.Error("shown too")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, float64(3), entries[0]["iteration"])
	assert.Contains(t, entries[0]["caller"], "logging/logger_test.go")
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := New(DebugLevel, &buf)
	child := base.WithField("job_id", "abc").WithError(assert.AnError)

	child.Info("child")
	base.Info("base")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "abc", entries[0]["job_id"])
	assert.Equal(t, assert.AnError.Error(), entries[0]["error"])
	assert.NotContains(t, entries[1], "job_id")
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf).WithFormat(TextFormat)

	logger.Info("run finished", map[string]interface{}{"reason": "converged", "iterations": 7})

	line := buf.String()
	assert.Contains(t, line, "INFO  run finished")
	assert.Contains(t, line, "iterations=7")
	assert.Contains(t, line, "reason=converged")
	assert.True(t, strings.Index(line, "iterations=") < strings.Index(line, "reason="), "keys are sorted")
}

func TestFatalExits(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.WithField("k", "v").Fatal("bye")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "FATAL")
}

func TestConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l := logger.WithField("worker", i)
			for j := 0; j < 50; j++ {
				l.Info("tick")
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, decodeLines(t, &buf), 400)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, logger.Level())

	logger, err = NewLogger(nil)
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, logger.Level())

	_, err = NewLogger(&Config{Format: "xml"})
	assert.Error(t, err)
}

func TestZapLoggerForwardsTypedFields(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(DebugLevel, &buf)).Named("newton").With(zap.String("objective", "saddle"))

	zl.Debug("Damping failed, increasing regularization",
		zap.Float64("mu", 1e-5),
		zap.Int("attempt", 2),
		zap.Bool("forced", false),
		zap.Duration("elapsed", 1500*time.Millisecond),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "DEBUG", e["level"])
	assert.Equal(t, "newton", e["logger"])
	assert.Equal(t, "saddle", e["objective"])
	assert.Equal(t, 1e-5, e["mu"])
	assert.Equal(t, float64(2), e["attempt"])
	assert.Equal(t, false, e["forced"])
	assert.Contains(t, e["caller"], "logging/logger_test.go")
}

func TestNonFiniteFloatsStayJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DebugLevel, &buf)
	zl := NewZapLogger(logger).Named("newton")

	zl.Debug("Regularized solve failed, increasing regularization",
		zap.Int("attempt", 1),
		zap.Float64("cond", math.Inf(1)),
	)
	zl.Debug("Run finished", zap.Float64("grad_norm", math.NaN()))
	zl.Debug("Trial point", zap.Float64s("x", []float64{1, math.Inf(-1)}))
	logger.Warn("Forced minimal step diverged", map[string]interface{}{
		"f":     math.Inf(1),
		"scale": float32(math.NaN()),
		"x":     []float64{math.NaN(), 2},
	})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 4)
	assert.Equal(t, "+Inf", entries[0]["cond"])
	assert.Equal(t, float64(1), entries[0]["attempt"])
	assert.Equal(t, "newton", entries[0]["logger"])
	assert.Equal(t, "NaN", entries[1]["grad_norm"])
	assert.Equal(t, []interface{}{float64(1), "-Inf"}, entries[2]["x"])
	assert.Equal(t, "+Inf", entries[3]["f"])
	assert.Equal(t, "NaN", entries[3]["scale"])
	assert.Equal(t, []interface{}{"NaN", float64(2)}, entries[3]["x"])
}

func TestZapLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(WarnLevel, &buf))

	zl.Info("dropped")
	zl.Warn("kept")

	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestMiddlewareLogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)

	var fromCtx *CtxLogger
	h := middleware.RequestID(Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = FromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/status/x", nil))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "Request completed", entries[0]["message"])
	assert.Equal(t, float64(http.StatusNotFound), entries[0]["status"])
	assert.Equal(t, "/api/v1/status/x", entries[0]["path"])
	assert.NotEmpty(t, entries[0]["request_id"])
	require.NotNil(t, fromCtx)
	assert.Equal(t, InfoLevel, fromCtx.Level())
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, InfoLevel, l.Level())
}
