// Package api exposes the simulation service over HTTP.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"retirement-sim-lab/internal/domain"
	"retirement-sim-lab/internal/idhash"
	"retirement-sim-lab/internal/kernel"
	"retirement-sim-lab/internal/observability"
	"retirement-sim-lab/internal/orchestrator"
	"retirement-sim-lab/internal/params"
	"retirement-sim-lab/internal/storage"
)

// Error codes returned to callers.
const (
	codeMissingInput       = "MISSING_INPUT"
	codeValidationError    = "VALIDATION_ERROR"
	codeServiceUnavailable = "SERVICE_UNAVAILABLE"
	codeKernelError        = "KERNEL_ERROR"
	codeParseError         = "PARSE_ERROR"
	codeInternalError      = "INTERNAL_ERROR"
	codeNotFound           = "NOT_FOUND"
)

const defaultRecentRuns = 20

// Options configures the Server.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Engine       kernel.Engine

	// RunStore and RunStatsStore are optional; when set, completed runs are
	// persisted best-effort.
	RunStore      storage.RunStore
	RunStatsStore storage.RunStatisticsStore

	Logger *log.Logger
}

// Server handles the HTTP surface of the simulation service.
type Server struct {
	orch          *orchestrator.Orchestrator
	engine        kernel.Engine
	runStore      storage.RunStore
	runStatsStore storage.RunStatisticsStore
	logger        *log.Logger
}

// NewServer creates a Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[api] ", log.LstdFlags)
	}
	return &Server{
		orch:          opts.Orchestrator,
		engine:        opts.Engine,
		runStore:      opts.RunStore,
		runStatsStore: opts.RunStatsStore,
		logger:        logger,
	}, nil
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /simulate", s.handleSimulate)
	mux.HandleFunc("GET /simulate/stream", s.handleSimulateStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleRunByID)
	mux.HandleFunc("GET /runs/{id}/statistics", s.handleRunStatistics)
	mux.HandleFunc("GET /stats/{metric}", s.handleMetricSeries)
	mux.Handle("GET /metrics", observability.Handler())
	return s.recoverPanics(s.trackRequests(mux))
}

// simulateRequest is the inbound envelope.
type simulateRequest struct {
	PacketBuildRequest *domain.SimulateRequest `json:"packetBuildRequest"`
}

// simulateResponse is the success envelope.
type simulateResponse struct {
	Success bool `json:"success"`

	// Payload is the untouched kernel statistics payload; MC is the
	// normalized canonical record.
	Payload json.RawMessage      `json:"payload,omitempty"`
	MC      *domain.MCStatistics `json:"mc,omitempty"`

	ExemplarPath   *domain.ExemplarPathRef `json:"exemplarPath,omitempty"`
	BlockedOutputs []string                `json:"blockedOutputs,omitempty"`
	BaseSeed       int64                   `json:"baseSeed"`
	PathsRun       int                     `json:"pathsRun"`
	ElapsedMs      int64                   `json:"elapsedMs"`
	ReplayMode     bool                    `json:"replayMode"`
	RunID          string                  `json:"runId,omitempty"`

	AnnualSnapshots  []domain.AnnualSnapshot   `json:"annualSnapshots,omitempty"`
	FirstMonthEvents []domain.FirstMonthDigest `json:"firstMonthEvents,omitempty"`
	Trace            *domain.TraceData         `json:"trace,omitempty"`
	TraceNote        string                    `json:"traceNote,omitempty"`
}

// errorBody is the failure envelope.
type errorBody struct {
	Success bool      `json:"success"`
	Error   errorInfo `json:"error"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidationError,
			fmt.Sprintf("decode request body: %v", err))
		return
	}
	if req.PacketBuildRequest == nil {
		s.writeError(w, http.StatusBadRequest, codeMissingInput,
			"packetBuildRequest is required")
		return
	}

	p, err := params.Normalize(req.PacketBuildRequest)
	if err != nil {
		s.writeSimulateError(w, err)
		return
	}

	result, err := s.orch.Run(r.Context(), p)
	if err != nil {
		s.writeSimulateError(w, err)
		return
	}
	elapsed := time.Since(start)

	mode := "two_phase"
	if result.ReplayMode {
		mode = "replay"
	}
	observability.RecordSimulation(mode, "ok", elapsed.Seconds())
	observability.DefaultMetrics.LastSuccessfulSimulation.Set(float64(time.Now().Unix()))

	runID := s.persistRun(r.Context(), p, result, elapsed.Milliseconds())

	s.writeJSON(w, http.StatusOK, simulateResponse{
		Success:          true,
		Payload:          result.RawPayload,
		MC:               result.Stats,
		ExemplarPath:     result.ExemplarPath,
		BlockedOutputs:   result.BlockedOutputs,
		BaseSeed:         result.BaseSeed,
		PathsRun:         result.PathsRun,
		ElapsedMs:        elapsed.Milliseconds(),
		ReplayMode:       result.ReplayMode,
		RunID:            runID,
		AnnualSnapshots:  result.AnnualSnapshots,
		FirstMonthEvents: result.FirstMonthEvents,
		Trace:            result.Trace,
		TraceNote:        result.TraceNote,
	})
}

// writeSimulateError maps normalization and orchestration failures onto the
// error taxonomy.
func (s *Server) writeSimulateError(w http.ResponseWriter, err error) {
	switch {
	case params.IsMissingInput(err):
		s.writeError(w, http.StatusBadRequest, codeMissingInput, err.Error())
	case errors.Is(err, kernel.ErrUnavailable):
		observability.RecordSimulation("two_phase", "unavailable", 0)
		s.writeError(w, http.StatusServiceUnavailable, codeServiceUnavailable,
			"simulation kernel is unavailable")
	case errors.Is(err, kernel.ErrParse):
		observability.RecordSimulation("two_phase", "parse_error", 0)
		s.writeError(w, http.StatusInternalServerError, codeParseError, err.Error())
	default:
		var compErr *kernel.ComputationError
		if errors.As(err, &compErr) {
			observability.RecordSimulation("two_phase", "kernel_error", 0)
			s.writeError(w, http.StatusInternalServerError, codeKernelError, compErr.Message)
			return
		}
		// Everything else from normalization and plan compilation is a
		// caller problem.
		s.writeError(w, http.StatusBadRequest, codeValidationError, err.Error())
	}
}

// persistRun writes the run record and its percentile points. Best-effort:
// failures are logged and never surface to the caller.
func (s *Server) persistRun(ctx context.Context, p *domain.PlanParams,
	result *orchestrator.Result, elapsedMs int64) string {

	if s.runStore == nil {
		return ""
	}

	runID := idhash.ComputeRunID(result.BaseSeed, p.StartYear, p.HorizonMonths,
		result.PathsRun, result.ReplayMode)
	now := time.Now().UnixMilli()

	record := &domain.RunRecord{
		RunID:         runID,
		BaseSeed:      result.BaseSeed,
		StartYear:     p.StartYear,
		HorizonMonths: p.HorizonMonths,
		PathsRun:      result.PathsRun,
		ReplayMode:    result.ReplayMode,
		ElapsedMs:     elapsedMs,
		CreatedAtMs:   now,
	}
	if st := result.Stats; st != nil {
		if st.SuccessRate != nil {
			record.SuccessRate = *st.SuccessRate
		}
		if st.EverBreachProbability != nil {
			record.EverBreachProbability = *st.EverBreachProbability
		}
		if st.FinalNetWorthP50 != nil {
			record.FinalNetWorthP50 = *st.FinalNetWorthP50
		}
	}

	if err := s.runStore.Insert(ctx, record); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			s.logger.Printf("persist run %s: %v", runID, err)
		}
		return runID
	}

	if s.runStatsStore != nil && result.Stats != nil {
		points := statPoints(runID, result.Stats, now)
		if err := s.runStatsStore.InsertBulk(ctx, points); err != nil {
			s.logger.Printf("persist run statistics %s: %v", runID, err)
		}
	}
	return runID
}

// statPoints flattens the canonical statistics into analytics rows.
func statPoints(runID string, st *domain.MCStatistics, now int64) []*domain.RunStatPoint {
	add := func(points []*domain.RunStatPoint, metric, pct string, v *float64) []*domain.RunStatPoint {
		if v == nil {
			return points
		}
		return append(points, &domain.RunStatPoint{
			RunID: runID, Metric: metric, Percentile: pct,
			Value: *v, CreatedAtMs: now,
		})
	}

	var points []*domain.RunStatPoint
	points = add(points, "final_net_worth", "p10", st.FinalNetWorthP10)
	points = add(points, "final_net_worth", "p25", st.FinalNetWorthP25)
	points = add(points, "final_net_worth", "p50", st.FinalNetWorthP50)
	points = add(points, "final_net_worth", "p75", st.FinalNetWorthP75)
	points = add(points, "final_net_worth", "p90", st.FinalNetWorthP90)
	points = add(points, "min_cash", "p10", st.MinCashP10)
	points = add(points, "min_cash", "p50", st.MinCashP50)
	points = add(points, "min_cash", "p90", st.MinCashP90)
	points = add(points, "runway_months", "p10", st.RunwayMonthsP10)
	points = add(points, "runway_months", "p50", st.RunwayMonthsP50)
	points = add(points, "runway_months", "p90", st.RunwayMonthsP90)
	points = add(points, "success_rate", "point", st.SuccessRate)
	points = add(points, "ever_breach_probability", "point", st.EverBreachProbability)
	return points
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status       string `json:"status"`
	EngineLoaded bool   `json:"engineLoaded"`
	EngineReady  bool   `json:"engineReady"`
	Timestamp    int64  `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	ready := s.engine.Ready(ctx) == nil
	status := "ok"
	code := http.StatusOK
	if !ready {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, healthResponse{
		Status:       status,
		EngineLoaded: true,
		EngineReady:  ready,
		Timestamp:    time.Now().UnixMilli(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runStore == nil {
		s.writeError(w, http.StatusNotFound, codeNotFound, "run history is not enabled")
		return
	}

	if raw := r.URL.Query().Get("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, codeValidationError, "seed must be an integer")
			return
		}
		runs, err := s.runStore.GetBySeed(r.Context(), seed)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, codeInternalError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
		return
	}

	limit := defaultRecentRuns
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, codeValidationError, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.runStore.GetRecent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, codeInternalError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleRunStatistics returns the persisted percentile points of one run.
func (s *Server) handleRunStatistics(w http.ResponseWriter, r *http.Request) {
	if s.runStatsStore == nil {
		s.writeError(w, http.StatusNotFound, codeNotFound, "run analytics are not enabled")
		return
	}

	runID := r.PathValue("id")
	points, err := s.runStatsStore.GetByRunID(r.Context(), runID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, codeInternalError, err.Error())
		return
	}
	if len(points) == 0 {
		s.writeError(w, http.StatusNotFound, codeNotFound, "no statistics for run")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"runId": runID, "statistics": points})
}

// handleMetricSeries returns one (metric, percentile) series across all
// persisted runs, for cross-run distribution views.
func (s *Server) handleMetricSeries(w http.ResponseWriter, r *http.Request) {
	if s.runStatsStore == nil {
		s.writeError(w, http.StatusNotFound, codeNotFound, "run analytics are not enabled")
		return
	}

	metric := r.PathValue("metric")
	percentile := r.URL.Query().Get("percentile")
	if percentile == "" {
		s.writeError(w, http.StatusBadRequest, codeValidationError, "percentile query parameter is required")
		return
	}

	points, err := s.runStatsStore.GetMetricValues(r.Context(), metric, percentile)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, codeInternalError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"metric": metric, "percentile": percentile, "values": points,
	})
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if s.runStore == nil {
		s.writeError(w, http.StatusNotFound, codeNotFound, "run history is not enabled")
		return
	}

	run, err := s.runStore.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, codeNotFound, "run not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, codeInternalError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// recoverPanics turns handler panics into 500 responses instead of taking
// down the listener.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Printf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				s.writeError(w, http.StatusInternalServerError, codeInternalError,
					"internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// trackRequests maintains the in-flight gauge and per-route latency.
func (s *Server) trackRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.DefaultMetrics.RequestsInFlight.Inc()
		defer observability.DefaultMetrics.RequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		observability.DefaultMetrics.RequestDuration.
			WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.status = code
		r.written = true
	}
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes the connection through so the WebSocket upgrade works behind
// the tracking middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, errCode, message string) {
	s.writeJSON(w, code, errorBody{
		Success: false,
		Error:   errorInfo{Code: errCode, Message: message},
	})
}
