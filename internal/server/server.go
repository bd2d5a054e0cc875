package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/descent/internal/config"
	apperrors "github.com/copyleftdev/descent/internal/errors"
	"github.com/copyleftdev/descent/internal/experiment"
	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/metrics"
	"github.com/copyleftdev/descent/internal/optimization/objectives"
	"github.com/copyleftdev/descent/internal/store"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithStore persists every completed job.
func WithStore(s store.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithMetrics records every completed job.
func WithMetrics(m *metrics.Metrics) Option {
	return func(srv *Server) { srv.metrics = m }
}

// Server implements the HTTP and JSON-RPC server for the minimization service.
// It manages asynchronous jobs and provides endpoints to start, monitor, and
// cancel them.
type Server struct {
	cfg     *config.Config
	logger  Logger
	store   store.Store
	metrics *metrics.Metrics

	jobs   map[string]*JobState
	jobsMu sync.RWMutex

	// slots bounds the number of jobs running at once.
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewServer creates a new server instance with the given config and logger.
func NewServer(cfg *config.Config, logger Logger, opts ...Option) *Server {
	workers := cfg.Optimization.WorkerCount
	if workers < 1 {
		workers = 1
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*JobState),
		slots:  make(chan struct{}, workers),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/minimize", s.handleMinimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Get("/objectives", s.handleObjectives)
		r.Get("/summary", s.handleSummary)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close cancels all jobs and waits for running minimizers to return.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	now := time.Now()
	for _, job := range s.jobs {
		job.cancel()
		switch job.Status {
		case StatusPending, StatusRunning:
			job.Status = StatusCancelled
			job.EndTime = &now
			job.LastUpdated = now
		}
	}
	s.jobsMu.Unlock()

	s.wg.Wait()
	return nil
}

// ObjectiveInfo describes a registered objective.
type ObjectiveInfo struct {
	Name string `json:"name"`
	Dim  int    `json:"dim"`
}

func listObjectives() []ObjectiveInfo {
	names := objectives.Names()
	out := make([]ObjectiveInfo, 0, len(names))
	for _, name := range names {
		obj, err := objectives.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, ObjectiveInfo{Name: name, Dim: obj.Dim()})
	}
	return out
}

func (s *Server) summary() ([]experiment.Summary, error) {
	if s.store == nil {
		return nil, apperrors.New("no results store configured").WithStatus(http.StatusServiceUnavailable)
	}
	records, err := s.store.Load()
	if err != nil {
		return nil, apperrors.Wrap(err, "load results").WithComponent("store")
	}
	return experiment.Summarize(records), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleMinimize handles POST /api/v1/minimize.
func (s *Server) handleMinimize(w http.ResponseWriter, r *http.Request) {
	var req MinimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteJSON(w, apperrors.BadRequest("invalid request body: %v", err))
		return
	}

	view, err := s.startJob(req)
	if err != nil {
		apperrors.WriteJSON(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     view.ID,
		"status": view.Status,
	})
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobStatus(chi.URLParam(r, "id"))
	if err != nil {
		apperrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.cancelJob(chi.URLParam(r, "id")); err != nil {
		apperrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": StatusCancelled})
}

// handleObjectives handles GET /api/v1/objectives.
func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listObjectives())
}

// handleSummary handles GET /api/v1/summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.summary()
	if err != nil {
		apperrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}
