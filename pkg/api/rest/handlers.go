package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/shapelet/internal/engine"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/config"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/discrepancy"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/observability"
	"github.com/therealutkarshpriyadarshi/shapelet/pkg/path"
)

// Handler provides HTTP handlers over the discrepancy engine
type Handler struct {
	registry  *engine.Registry
	cfg       *config.Config
	metrics   *observability.Metrics
	logger    *observability.Logger
	startTime time.Time
}

// NewHandler creates a new REST API handler
func NewHandler(registry *engine.Registry, cfg *config.Config, metrics *observability.Metrics, logger *observability.Logger) *Handler {
	return &Handler{
		registry:  registry,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		startTime: time.Now(),
	}
}

// tensorPayload is the wire form of a tensor: explicit shape plus row-major
// values, so batched paths round-trip without nested array ambiguity.
type tensorPayload struct {
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

func (p tensorPayload) tensor() (*path.Tensor, error) {
	return path.New(p.Shape, p.Values)
}

// createRequest describes a discrepancy instance to register. P is the
// norm parameter for logsignature instances; PInf selects the max norm
// since JSON cannot carry +Inf.
type createRequest struct {
	Name         string  `json:"name"`
	Kind         string  `json:"kind"`
	Channels     int     `json:"channels"`
	Depth        int     `json:"depth,omitempty"`
	P            float64 `json:"p,omitempty"`
	PInf         bool    `json:"p_inf,omitempty"`
	IncludeTime  *bool   `json:"include_time,omitempty"`
	Pseudometric *bool   `json:"pseudometric,omitempty"`
	MetricType   string  `json:"metric_type,omitempty"`
	Seed         int64   `json:"seed,omitempty"`
}

type computeRequest struct {
	Times []float64     `json:"times"`
	Path1 tensorPayload `json:"path1"`
	Path2 tensorPayload `json:"path2"`
}

type computeResponse struct {
	Result     tensorPayload `json:"result"`
	DurationMs float64       `json:"duration_ms"`
}

type statsResponse struct {
	UptimeSeconds float64       `json:"uptime_seconds"`
	Instances     []engine.Info `json:"instances"`
}

// HealthCheck handles GET /v1/health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}, http.StatusOK)
}

// GetStats handles GET /v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, statsResponse{
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Instances:     h.registry.List(),
	}, http.StatusOK)
}

// CreateDiscrepancy handles POST /v1/discrepancies
func (h *Handler) CreateDiscrepancy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "CreateDiscrepancy", fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest, start)
		return
	}
	if req.Channels > h.cfg.Engine.MaxChannels {
		h.fail(w, "CreateDiscrepancy", fmt.Sprintf("channels %d exceeds limit %d", req.Channels, h.cfg.Engine.MaxChannels), http.StatusBadRequest, start)
		return
	}

	spec, err := h.buildSpec(req)
	if err != nil {
		h.fail(w, "CreateDiscrepancy", err.Error(), http.StatusBadRequest, start)
		return
	}

	info, err := h.registry.Create(spec)
	if err != nil {
		h.fail(w, "CreateDiscrepancy", err.Error(), statusFor(err), start)
		return
	}

	h.metrics.RecordRequest("CreateDiscrepancy", "success", time.Since(start))
	writeJSON(w, info, http.StatusCreated)
}

// buildSpec translates a wire request into an engine spec, filling in
// defaults the same way the library constructors do.
func (h *Handler) buildSpec(req createRequest) (engine.Spec, error) {
	if req.Name == "" {
		return engine.Spec{}, fmt.Errorf("name is required")
	}
	spec := engine.Spec{Name: req.Name, Kind: engine.Kind(req.Kind)}

	switch spec.Kind {
	case engine.KindL2:
		cfg := discrepancy.DefaultL2Config(req.Channels)
		cfg.Workers = h.cfg.Engine.Workers
		applyMetricOptions(&cfg.Pseudometric, &cfg.MetricType, req)
		if req.Seed != 0 {
			cfg.Seed = req.Seed
		}
		spec.L2 = &cfg

	case engine.KindLogsignature:
		depth := req.Depth
		if depth == 0 {
			depth = 2
		}
		cfg := discrepancy.DefaultLogsignatureConfig(req.Channels, depth)
		if req.PInf {
			cfg.P = math.Inf(1)
		} else if req.P != 0 {
			cfg.P = req.P
		}
		if req.IncludeTime != nil {
			cfg.IncludeTime = *req.IncludeTime
		}
		applyMetricOptions(&cfg.Pseudometric, &cfg.MetricType, req)
		if req.Seed != 0 {
			cfg.Seed = req.Seed
		}
		spec.Logsignature = &cfg

	default:
		return engine.Spec{}, fmt.Errorf("unknown kind %q (valid: %s, %s)", req.Kind, engine.KindL2, engine.KindLogsignature)
	}
	return spec, nil
}

func applyMetricOptions(pseudometric *bool, metricType *discrepancy.MetricType, req createRequest) {
	if req.Pseudometric != nil {
		*pseudometric = *req.Pseudometric
	}
	if req.MetricType != "" {
		*metricType = discrepancy.MetricType(req.MetricType)
	}
}

// ListDiscrepancies handles GET /v1/discrepancies
func (h *Handler) ListDiscrepancies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"instances": h.registry.List()}, http.StatusOK)
}

// GetDiscrepancy handles GET /v1/discrepancies/{name}
func (h *Handler) GetDiscrepancy(w http.ResponseWriter, r *http.Request, name string) {
	info, err := h.registry.Describe(name)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, info, http.StatusOK)
}

// Compute handles POST /v1/discrepancies/{name}/compute
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request, name string) {
	start := time.Now()

	var req computeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, "Compute", fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest, start)
		return
	}
	if len(req.Times) > h.cfg.Engine.MaxKnots {
		h.fail(w, "Compute", fmt.Sprintf("grid length %d exceeds limit %d", len(req.Times), h.cfg.Engine.MaxKnots), http.StatusBadRequest, start)
		return
	}

	p1, err := req.Path1.tensor()
	if err != nil {
		h.fail(w, "Compute", fmt.Sprintf("path1: %v", err), http.StatusBadRequest, start)
		return
	}
	p2, err := req.Path2.tensor()
	if err != nil {
		h.fail(w, "Compute", fmt.Sprintf("path2: %v", err), http.StatusBadRequest, start)
		return
	}

	out, err := h.registry.Compute(name, path.Grid(req.Times), p1, p2)
	if err != nil {
		h.fail(w, "Compute", err.Error(), statusFor(err), start)
		return
	}

	h.metrics.RecordRequest("Compute", "success", time.Since(start))
	writeJSON(w, computeResponse{
		Result:     tensorPayload{Shape: out.Shape(), Values: out.Data()},
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
	}, http.StatusOK)
}

func (h *Handler) fail(w http.ResponseWriter, method, msg string, status int, start time.Time) {
	h.metrics.RecordRequest(method, "error", time.Since(start))
	h.logger.Warn("Request failed", map[string]interface{}{
		"method": method,
		"status": status,
		"error":  msg,
	})
	writeError(w, msg, status)
}

// statusFor maps engine and discrepancy errors onto HTTP status codes.
func statusFor(err error) int {
	var shapeErr *path.ShapeError
	var cfgErr *discrepancy.ConfigError
	var depErr *discrepancy.MissingDependencyError
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrExists):
		return http.StatusConflict
	case errors.Is(err, engine.ErrLimit):
		return http.StatusConflict
	case errors.As(err, &shapeErr), errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.As(err, &depErr):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, map[string]interface{}{"error": message, "status": status}, status)
}

// trimName extracts {name} from /v1/discrepancies/{name}/compute
func trimName(urlPath string) (name string, compute bool) {
	rest := strings.TrimPrefix(urlPath, "/v1/discrepancies/")
	if rest == urlPath {
		return "", false
	}
	if strings.HasSuffix(rest, "/compute") {
		return strings.TrimSuffix(rest, "/compute"), true
	}
	return rest, false
}
