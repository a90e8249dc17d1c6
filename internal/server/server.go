package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/stochopt/internal/config"
	apperrors "github.com/copyleftdev/stochopt/internal/errors"
	"github.com/copyleftdev/stochopt/internal/logging"
	"github.com/copyleftdev/stochopt/internal/optimization"
	"github.com/copyleftdev/stochopt/internal/optimization/objectives"
	"github.com/copyleftdev/stochopt/internal/optimization/stochastic"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// JobState tracks one optimization job from submission to completion. The
// state is guarded by the server's job mutex and safe to read concurrently.
type JobState struct {
	ID          string
	Objective   string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	Result      *optimization.RunResult
	Optimizer   optimization.Optimizer
	CancelFunc  context.CancelFunc
	LastUpdated time.Time
}

// Server exposes the optimization engine over HTTP and JSON-RPC. Jobs run
// named benchmark objectives against caller-supplied bounds and options.
type Server struct {
	cfg       *config.Config
	logger    Logger
	engineLog *zap.Logger

	jobs   map[string]*JobState
	jobsMu sync.RWMutex
}

// NewServer creates a new server instance with the given config and loggers.
// engineLog is handed to every optimizer run for adaptation telemetry; nil
// disables it.
func NewServer(cfg *config.Config, logger Logger, engineLog *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		engineLog: engineLog,
		jobs:      make(map[string]*JobState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/objectives", s.handleObjectives)
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// startRequest is the submission payload, shared by both surfaces.
type startRequest struct {
	// Objective names a registered benchmark function
	Objective string `json:"objective"`
	// Bounds holds [lower, upper] per coordinate; empty derives the
	// benchmark's conventional bounds in two dimensions
	Bounds [][]float64 `json:"bounds"`
	// Options tunes the run; omitted fields fall back to server defaults
	Options jobOptions `json:"options"`
}

// jobOptions mirrors optimization.Options for the wire.
type jobOptions struct {
	MaxEvaluations        int      `json:"max_evaluations,omitempty"`
	PopulationSize        int      `json:"population_size,omitempty"`
	TargetFitness         *float64 `json:"target_fitness,omitempty"`
	StagnationGenerations int      `json:"stagnation_generations,omitempty"`
	NumRestarts           int      `json:"num_restarts,omitempty"`
	RandomSeed            int64    `json:"random_seed,omitempty"`
	Maximize              bool     `json:"maximize,omitempty"`
	ScaleMin              float64  `json:"scale_min,omitempty"`
	ScaleMax              float64  `json:"scale_max,omitempty"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string            `json:"jsonrpc"`
		ID      interface{}       `json:"id"`
		Method  string            `json:"method"`
		Params  []json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "optimization.start":
		result, err = s.startJob(request.Params)
	case "optimization.status":
		result, err = s.jobStatus(request.Params)
	case "optimization.cancel":
		err = s.cancelJob(request.Params)
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	// Send successful response
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// startJob handles the optimization.start JSON-RPC method. It validates the
// request, constructs the multi-start optimizer and launches the run in a
// goroutine. Returns {"optimization_id": ..., "status": "pending"}.
func (s *Server) startJob(params []json.RawMessage) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}

	var req startRequest
	if err := json.Unmarshal(params[0], &req); err != nil {
		return nil, fmt.Errorf("invalid parameter format: %v", err)
	}

	bench, ok := objectives.Lookup(req.Objective)
	if !ok {
		return nil, fmt.Errorf("unknown objective %q, known: %v", req.Objective, objectives.Names())
	}

	lower, upper, err := parseBounds(req.Bounds, bench)
	if err != nil {
		return nil, err
	}

	opts := s.buildOptions(req.Options)

	// Construct the optimizer up front so bound and configuration errors
	// fail the request instead of a background job.
	opt, err := stochastic.NewMultiStart(lower, upper, opts, s.engineLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create optimizer: %v", err)
	}

	// Generate a unique ID for this optimization
	id := fmt.Sprintf("opt_%d", time.Now().UnixNano())

	// Create a cancellable context
	ctx, cancel := context.WithCancel(context.Background())

	state := &JobState{
		ID:          id,
		Objective:   bench.Name,
		Status:      "pending",
		StartTime:   time.Now(),
		Optimizer:   opt,
		CancelFunc:  cancel,
		LastUpdated: time.Now(),
	}

	s.jobsMu.Lock()
	s.jobs[id] = state
	s.jobsMu.Unlock()

	jobsStarted.Inc()

	// Start optimization in a goroutine
	go s.runJob(ctx, state, bench.Func)

	return map[string]interface{}{
		"optimization_id": id,
		"status":          "pending",
	}, nil
}

// jobStatus handles the optimization.status JSON-RPC method. It returns the
// current status, progress trace and best solution of a job.
func (s *Server) jobStatus(params []json.RawMessage) (interface{}, error) {
	id, err := parseJobID(params)
	if err != nil {
		return nil, err
	}

	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	state, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("optimization not found")
	}

	response := map[string]interface{}{
		"status":      state.Status,
		"objective":   state.Objective,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}

	// Add end time if available
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}

	if state.Result != nil {
		response["result"] = map[string]interface{}{
			"best_parameters":    state.Result.BestParameters,
			"best_fitness":       state.Result.BestFitness,
			"evaluations_used":   state.Result.Evaluations,
			"total_evaluations":  state.Result.TotalEvaluations,
			"termination_reason": state.Result.Reason.String(),
		}
	}

	if state.Optimizer != nil {
		// Current best while the job is still running
		if best := state.Optimizer.BestSolution(); best != nil {
			response["current_best"] = map[string]interface{}{
				"parameters": best.Parameters,
				"value":      best.Value,
			}
		}

		if progress := state.Optimizer.Progress(); len(progress) > 0 {
			trace := make([]map[string]interface{}, len(progress))
			for i, sample := range progress {
				trace[i] = map[string]interface{}{
					"generation":   sample.Generation,
					"evaluations":  sample.Evaluations,
					"best_fitness": sample.BestFitness,
					"scale":        sample.Scale,
				}
			}
			response["progress"] = trace
		}
	}

	return response, nil
}

// cancelJob handles the optimization.cancel JSON-RPC method.
func (s *Server) cancelJob(params []json.RawMessage) error {
	id, err := parseJobID(params)
	if err != nil {
		return err
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	state, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("optimization not found")
	}

	switch state.Status {
	case "completed", "failed", "cancelled":
		// Already in a terminal state
		return fmt.Errorf("cannot cancel optimization with status: %s", state.Status)
	}

	// Cancel the optimization
	if state.CancelFunc != nil {
		state.CancelFunc()
	}

	// Update state
	state.Status = "cancelled"
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})

	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// runJob executes one optimization job in a goroutine and records metrics.
func (s *Server) runJob(ctx context.Context, state *JobState, objective optimization.ObjectiveFunction) {
	s.jobsMu.Lock()
	state.Status = "running"
	state.LastUpdated = time.Now()
	s.jobsMu.Unlock()

	result, err := state.Optimizer.Optimize(ctx, objective)

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := time.Now()
	if state.Status == "cancelled" {
		// The cancel handler already settled the job; keep the result if
		// the run produced one on the way out.
		state.Result = result
		jobsFinished.WithLabelValues("cancelled").Inc()
	} else if err != nil {
		wrapped := apperrors.Wrapf(err, "optimization job %s", state.ID).
			WithOperation("runJob").
			WithComponent("server")
		s.logger.Error("Optimization failed", map[string]interface{}{
			"optimization_id": state.ID,
			"error":           wrapped.Error(),
		})
		state.Status = "failed"
		jobsFinished.WithLabelValues("failed").Inc()
	} else {
		state.Status = "completed"
		state.Result = result
		jobsFinished.WithLabelValues(result.Reason.String()).Inc()
		evaluationsTotal.Add(float64(result.TotalEvaluations))
	}
	jobDuration.Observe(now.Sub(state.StartTime).Seconds())
	state.EndTime = &now
	state.LastUpdated = now
}

// buildOptions merges wire options with the server's solver defaults.
func (s *Server) buildOptions(req jobOptions) optimization.Options {
	opts := optimization.Options{
		MaxEvaluations:        req.MaxEvaluations,
		PopulationSize:        req.PopulationSize,
		TargetFitness:         req.TargetFitness,
		StagnationGenerations: req.StagnationGenerations,
		NumRestarts:           req.NumRestarts,
		RandomSeed:            req.RandomSeed,
		Maximize:              req.Maximize,
		ScaleMin:              req.ScaleMin,
		ScaleMax:              req.ScaleMax,
	}
	if opts.MaxEvaluations == 0 {
		opts.MaxEvaluations = s.cfg.Solver.MaxEvaluations
	}
	if opts.NumRestarts == 0 {
		opts.NumRestarts = s.cfg.Solver.NumRestarts
	}
	if opts.StagnationGenerations == 0 {
		opts.StagnationGenerations = s.cfg.Solver.StagnationGenerations
	}
	return opts
}

// parseBounds converts wire bounds into lower/upper vectors, falling back to
// the benchmark's conventional bounds in two dimensions.
func parseBounds(raw [][]float64, bench objectives.Benchmark) ([]float64, []float64, error) {
	if len(raw) == 0 {
		return []float64{bench.Lower, bench.Lower}, []float64{bench.Upper, bench.Upper}, nil
	}
	lower := make([]float64, len(raw))
	upper := make([]float64, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, nil, fmt.Errorf("invalid bounds format, expected [[min1, max1], [min2, max2], ...]")
		}
		lower[i] = pair[0]
		upper[i] = pair[1]
	}
	return lower, upper, nil
}

// parseJobID extracts {"optimization_id": ...} from JSON-RPC params.
func parseJobID(params []json.RawMessage) (string, error) {
	if len(params) == 0 {
		return "", fmt.Errorf("missing required parameters")
	}
	var ref struct {
		ID string `json:"optimization_id"`
	}
	if err := json.Unmarshal(params[0], &ref); err != nil {
		return "", fmt.Errorf("invalid parameter format: %v", err)
	}
	if ref.ID == "" {
		return "", fmt.Errorf("optimization_id is required")
	}
	return ref.ID, nil
}

// Close cleans up resources
func (s *Server) Close() error {
	// Cancel all running optimizations
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for _, job := range s.jobs {
		if job.CancelFunc != nil {
			job.CancelFunc()
		}
	}
	return nil
}

// handleObjectives lists the registered benchmark objectives.
func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"objectives": objectives.Names(),
	})
}

// handleOptimize handles the HTTP POST /optimize endpoint for starting a new optimization
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	raw, err := json.Marshal(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := s.startJob([]json.RawMessage{raw})

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles the HTTP GET /status/:id endpoint for checking optimization status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	result, err := s.jobStatus(idParam(id))

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles the HTTP DELETE /optimization/:id endpoint
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	err := s.cancelJob(idParam(id))

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "cancelled",
	})
}

// idParam packs a job ID into JSON-RPC parameter form.
func idParam(id string) []json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"optimization_id": id})
	return []json.RawMessage{raw}
}
