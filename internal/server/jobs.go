package server

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/copyleftdev/descent/internal/errors"
	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/gradient"
	"github.com/copyleftdev/descent/internal/optimization/newton"
	"github.com/copyleftdev/descent/internal/optimization/numdiff"
	"github.com/copyleftdev/descent/internal/optimization/objectives"
	"github.com/copyleftdev/descent/internal/store"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// MinimizeRequest describes one run.
type MinimizeRequest struct {
	// Algorithm is gradient.Name or newton.Name.
	Algorithm string    `json:"algorithm"`
	Objective string    `json:"objective"`
	Start     []float64 `json:"start"`
	// Step is the initial step length for gradient descent.
	Step          *float64 `json:"step,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty"`
	Tolerance     float64  `json:"tolerance,omitempty"`
	// NumericDerivatives replaces the analytic derivatives with finite differences.
	NumericDerivatives bool `json:"numeric_derivatives,omitempty"`
}

// JobState tracks one asynchronous run. Fields are guarded by Server.jobsMu.
type JobState struct {
	ID          string
	Status      string
	Request     MinimizeRequest
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Result      *optimization.RunResult
	Err         string

	cancel context.CancelFunc
}

// ResultView is the JSON form of a RunResult.
type ResultView struct {
	X              []float64                      `json:"x"`
	F              float64                        `json:"f"`
	Iterations     int                            `json:"iterations"`
	GradNorm       *float64                       `json:"grad_norm,omitempty"`
	ForcedSteps    int                            `json:"forced_steps"`
	Reason         optimization.TerminationReason `json:"reason"`
	Converged      bool                           `json:"converged"`
	ElapsedSeconds float64                        `json:"elapsed_seconds"`
	Trajectory     [][]float64                    `json:"trajectory"`
}

// StatusView is the JSON form of a JobState.
type StatusView struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Request     MinimizeRequest `json:"request"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	LastUpdated time.Time       `json:"last_update"`
	Result      *ResultView     `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func newResultView(res *optimization.RunResult) *ResultView {
	v := &ResultView{
		X:              res.X,
		F:              res.F,
		Iterations:     res.Iterations,
		ForcedSteps:    res.ForcedSteps,
		Reason:         res.Reason,
		Converged:      res.Converged(),
		ElapsedSeconds: res.ElapsedSeconds(),
		Trajectory:     make([][]float64, len(res.Trajectory)),
	}
	// NaN has no JSON encoding; a missing grad_norm means the last gradient
	// was not finite.
	if !math.IsNaN(res.GradNorm) {
		g := res.GradNorm
		v.GradNorm = &g
	}
	for i, p := range res.Trajectory {
		v.Trajectory[i] = p
	}
	return v
}

func (j *JobState) view() StatusView {
	v := StatusView{
		ID:          j.ID,
		Status:      j.Status,
		Request:     j.Request,
		StartTime:   j.StartTime,
		EndTime:     j.EndTime,
		LastUpdated: j.LastUpdated,
		Error:       j.Err,
	}
	if j.Result != nil {
		v.Result = newResultView(j.Result)
	}
	return v
}

// prepared is a validated request bound to its oracle and optimizer.
type prepared struct {
	oracle   optimization.TwiceDifferentiable
	minimize func(optimization.TwiceDifferentiable, []float64) (*optimization.RunResult, error)
	step     store.StepParameter
	maxIter  int
}

// prepare validates req and builds the optimizer for it.
func (s *Server) prepare(req MinimizeRequest, logger *logging.Logger) (*prepared, error) {
	obj, err := objectives.Lookup(req.Objective)
	if err != nil {
		return nil, apperrors.BadRequest("%v", err)
	}
	if len(req.Start) != obj.Dim() {
		return nil, apperrors.BadRequest("start must have %d coordinates, got %d", obj.Dim(), len(req.Start))
	}
	if !optimization.AllFinite(req.Start) {
		return nil, apperrors.BadRequest("start must be finite")
	}
	if req.MaxIterations < 0 {
		return nil, apperrors.BadRequest("max_iterations must not be negative")
	}
	if req.Tolerance < 0 {
		return nil, apperrors.BadRequest("tolerance must not be negative")
	}

	p := &prepared{oracle: obj}
	if req.NumericDerivatives {
		p.oracle = numdiff.New(obj.Value, nil)
	}
	zl := logging.NewZapLogger(logger)

	switch req.Algorithm {
	case gradient.Name:
		cfg := s.cfg.GradientDescent()
		if req.Step != nil {
			cfg.InitialStep = *req.Step
		}
		if req.MaxIterations > 0 {
			cfg.MaxIterations = req.MaxIterations
		}
		if req.Tolerance > 0 {
			cfg.Tolerance = req.Tolerance
		}
		if err := cfg.Validate(); err != nil {
			return nil, apperrors.BadRequest("%v", err)
		}
		opt := gradient.New(cfg, zl)
		p.minimize = func(f optimization.TwiceDifferentiable, x0 []float64) (*optimization.RunResult, error) {
			return opt.Minimize(f, x0)
		}
		p.step = store.Fixed(cfg.InitialStep)
		p.maxIter = cfg.MaxIterations
	case newton.Name:
		if req.Step != nil {
			return nil, apperrors.BadRequest("newton chooses its own step; omit step")
		}
		cfg := s.cfg.Newton()
		if req.MaxIterations > 0 {
			cfg.MaxIterations = req.MaxIterations
		}
		if req.Tolerance > 0 {
			cfg.Tolerance = req.Tolerance
		}
		if err := cfg.Validate(); err != nil {
			return nil, apperrors.BadRequest("%v", err)
		}
		opt := newton.New(cfg, zl)
		p.minimize = opt.Minimize
		p.step = store.Auto
		p.maxIter = cfg.MaxIterations
	default:
		return nil, apperrors.BadRequest("unknown algorithm %q (want %q or %q)", req.Algorithm, gradient.Name, newton.Name)
	}
	return p, nil
}

// startJob validates req and schedules it. The returned state is a snapshot.
func (s *Server) startJob(req MinimizeRequest) (StatusView, error) {
	id := uuid.NewString()
	jobLogger := s.logger.WithFields(map[string]interface{}{
		"job_id":    id,
		"algorithm": req.Algorithm,
		"objective": req.Objective,
	})

	p, err := s.prepare(req, jobLogger)
	if err != nil {
		return StatusView{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	job := &JobState{
		ID:          id,
		Status:      StatusPending,
		Request:     req,
		StartTime:   now,
		LastUpdated: now,
		cancel:      cancel,
	}

	s.jobsMu.Lock()
	s.jobs[id] = job
	view := job.view()
	s.jobsMu.Unlock()

	s.wg.Add(1)
	go s.runJob(ctx, job, p, jobLogger)

	return view, nil
}

// runJob waits for a worker slot and runs the minimizer. The minimizer itself
// is not interruptible; cancelling a running job discards its result.
func (s *Server) runJob(ctx context.Context, job *JobState, p *prepared, logger *logging.Logger) {
	defer s.wg.Done()

	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.slots }()

	if !s.transition(job, StatusPending, StatusRunning) {
		return
	}
	if s.metrics != nil {
		s.metrics.JobStarted()
		defer s.metrics.JobFinished()
	}

	res, err := s.execute(p, job.Request.Start)

	s.jobsMu.Lock()
	if job.Status == StatusCancelled {
		s.jobsMu.Unlock()
		logger.Info("Discarding result of cancelled job")
		return
	}
	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now
	if err != nil {
		job.Status = StatusFailed
		job.Err = err.Error()
	} else {
		job.Status = StatusCompleted
		job.Result = res
	}
	s.jobsMu.Unlock()

	if err != nil {
		logger.Error("Optimization failed", map[string]interface{}{"error": err.Error()})
		return
	}

	logger.Info("Optimization completed", map[string]interface{}{
		"reason":     res.Reason.String(),
		"iterations": res.Iterations,
		"f":          res.F,
	})
	if s.metrics != nil {
		s.metrics.ObserveRun(job.Request.Algorithm, res)
	}
	if s.store != nil {
		rec := store.NewRecord(job.Request.Algorithm, job.Request.Start, p.step, p.maxIter, res)
		if err := s.store.Append(rec); err != nil {
			logger.Error("Failed to persist result", map[string]interface{}{"error": err.Error()})
		}
	}
}

// execute runs the minimizer, turning a panicking objective into an error.
func (s *Server) execute(p *prepared, x0 []float64) (res *optimization.RunResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("objective panicked: %v", rec)
		}
	}()
	return p.minimize(p.oracle, x0)
}

func (s *Server) transition(job *JobState, from, to string) bool {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if job.Status != from {
		return false
	}
	job.Status = to
	job.LastUpdated = time.Now()
	return true
}

func (s *Server) jobStatus(id string) (StatusView, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return StatusView{}, apperrors.NotFound("job", id)
	}
	return job.view(), nil
}

func (s *Server) cancelJob(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return apperrors.NotFound("job", id)
	}

	switch job.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return apperrors.Wrapf(apperrors.ErrConflict, "cannot cancel job with status %s", job.Status)
	}

	job.cancel()
	job.Status = StatusCancelled
	now := time.Now()
	job.EndTime = &now
	job.LastUpdated = now

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"job_id": id,
	})
	return nil
}
