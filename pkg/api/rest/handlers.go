package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benholden/tdoasolve/internal/tdoa"
	"github.com/benholden/tdoasolve/pkg/api/rest/middleware"
	"github.com/benholden/tdoasolve/pkg/cache"
	"github.com/benholden/tdoasolve/pkg/observability"
)

// Handler serves the localization HTTP API against an in-process Solver.
type Handler struct {
	solver  *tdoa.Solver
	cache   *cache.SolveCache
	metrics *observability.Metrics
	logger  *observability.Logger
	access  *observability.AccessLogger
}

// NewHandler creates a new REST API handler around the given solver. cache
// may be nil to disable result caching.
func NewHandler(solver *tdoa.Solver, solveCache *cache.SolveCache, metrics *observability.Metrics, logger *observability.Logger) *Handler {
	return &Handler{solver: solver, cache: solveCache, metrics: metrics, logger: logger, access: observability.NewAccessLogger(logger)}
}

// anchorDTO is the wire representation of an anchor.
type anchorDTO struct {
	X, Y, Z        float64
	TimeDifference float64
}

// solveRequest is the body of POST /v1/solve.
type solveRequest struct {
	Anchors []anchorDTO `json:"anchors"`
	Speed   float64     `json:"speed"`
	Cycles  int         `json:"cycles,omitempty"`
}

// estimateDTO is one ranked position estimate in a solve response.
type estimateDTO struct {
	X, Y, Z float64 `json:"-"`
	Weight  float64 `json:"weight"`
}

func (e estimateDTO) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Z      float64 `json:"z"`
		Weight float64 `json:"weight"`
	}{e.X, e.Y, e.Z, e.Weight})
}

type solveResponse struct {
	Estimates []estimateDTO `json:"estimates"`
	Stats     struct {
		AnchorCount  int     `json:"anchor_count"`
		Descents     int     `json:"descents"`
		ClusterCount int     `json:"cluster_count"`
		ResultCount  int     `json:"result_count"`
		ElapsedMS    float64 `json:"elapsed_ms"`
	} `json:"stats"`
	Cached bool `json:"cached"`
}

// Solve handles POST /v1/solve: runs the multi-start localization pipeline
// over the supplied anchors and returns the ranked estimates.
func (h *Handler) Solve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		h.recordRequest("Solve", "error", start)
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.recordRequest("Solve", "error", start)
		writeError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	anchors := make([]tdoa.Anchor, len(req.Anchors))
	for i, a := range req.Anchors {
		anchors[i] = tdoa.Anchor{
			Position:       tdoa.Vec3{X: a.X, Y: a.Y, Z: a.Z},
			TimeDifference: a.TimeDifference,
		}
	}

	cycles := req.Cycles
	if claims, ok := middleware.GetClaimsFromContext(r.Context()); ok && claims.MaxCycles > 0 {
		if cycles <= 0 || cycles > claims.MaxCycles {
			cycles = claims.MaxCycles
		}
	}
	if cycles < 1 {
		cycles = h.solver.Config().Cycles
	}

	var key cache.Key
	if h.cache != nil {
		key = cache.DeriveKey(anchors, req.Speed, cycles)
		if result, stats, ok := h.cache.Get(key); ok {
			h.metrics.RecordCacheHit()
			h.recordRequest("Solve", "success", start)
			h.access.LogSolveAccess(http.MethodPost, "/v1/solve", "200", time.Since(start), observability.SolveAccessFields{
				AnchorCount: stats.AnchorCount, Descents: stats.Descents, ClusterCount: stats.ClusterCount,
				ResultCount: stats.ResultCount, Cycles: cycles, Cached: true,
			})
			writeJSON(w, toSolveResponse(result, stats, true), http.StatusOK)
			return
		}
		h.metrics.RecordCacheMiss()
	}

	result, stats, err := h.solver.SolveWithCycles(anchors, req.Speed, cycles)
	if err != nil {
		h.recordRequest("Solve", "error", start)
		writePreconditionError(w, err)
		return
	}

	if h.cache != nil {
		h.cache.Put(key, result, stats)
		h.metrics.UpdateCacheSize(h.cache.Size())
	}

	h.metrics.RecordSolve(stats.Elapsed, stats.Descents, stats.ClusterCount, stats.ResultCount)
	h.recordRequest("Solve", "success", start)
	h.access.LogSolveAccess(http.MethodPost, "/v1/solve", "200", time.Since(start), observability.SolveAccessFields{
		AnchorCount: stats.AnchorCount, Descents: stats.Descents, ClusterCount: stats.ClusterCount,
		ResultCount: stats.ResultCount, Cycles: cycles, Cached: false,
	})
	writeJSON(w, toSolveResponse(result, stats, false), http.StatusOK)
}

func toSolveResponse(result tdoa.Result, stats tdoa.SolveStats, cached bool) solveResponse {
	resp := solveResponse{Estimates: make([]estimateDTO, len(result)), Cached: cached}
	for i, e := range result {
		resp.Estimates[i] = estimateDTO{X: e.Position.X, Y: e.Position.Y, Z: e.Position.Z, Weight: e.Weight}
	}
	resp.Stats.AnchorCount = stats.AnchorCount
	resp.Stats.Descents = stats.Descents
	resp.Stats.ClusterCount = stats.ClusterCount
	resp.Stats.ResultCount = stats.ResultCount
	resp.Stats.ElapsedMS = float64(stats.Elapsed.Microseconds()) / 1000.0
	return resp
}

// residualRequest is the body of POST /v1/residual.
type residualRequest struct {
	Anchors []anchorDTO `json:"anchors"`
	Speed   float64     `json:"speed"`
	Point   anchorDTO   `json:"point"`
}

// Residual handles POST /v1/residual: evaluates the cost surface at a single
// point, useful for diagnostics and client-side visualization.
func (h *Handler) Residual(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		h.recordRequest("Residual", "error", start)
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req residualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.recordRequest("Residual", "error", start)
		writeError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	anchors := make([]tdoa.Anchor, len(req.Anchors))
	for i, a := range req.Anchors {
		anchors[i] = tdoa.Anchor{
			Position:       tdoa.Vec3{X: a.X, Y: a.Y, Z: a.Z},
			TimeDifference: a.TimeDifference,
		}
	}
	normalized, err := tdoa.Normalize(anchors)
	if err != nil {
		h.recordRequest("Residual", "error", start)
		writePreconditionError(w, err)
		return
	}

	point := tdoa.Vec3{X: req.Point.X, Y: req.Point.Y, Z: req.Point.Z}
	cost := tdoa.Residual(point, normalized, req.Speed)

	h.recordRequest("Residual", "success", start)
	writeJSON(w, map[string]float64{"cost": cost}, http.StatusOK)
}

// HealthCheck handles GET /v1/health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *Handler) recordRequest(method, status string, start time.Time) {
	if h.metrics != nil {
		h.metrics.RecordRequest(method, status, time.Since(start))
	}
}

func writePreconditionError(w http.ResponseWriter, err error) {
	var pe *tdoa.PreconditionError
	if errors.As(err, &pe) {
		writeError(w, pe.Error(), http.StatusBadRequest)
		return
	}
	writeError(w, err.Error(), http.StatusInternalServerError)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}
