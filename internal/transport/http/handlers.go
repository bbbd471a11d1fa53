// Package http exposes the analytics engine's thin operator surface: reads
// over the forecast/restock engines plus health, readiness, and metrics
// endpoints. It follows the platform's handwritten net/http.ServeMux +
// RegisterRoutes convention rather than a web framework.
package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DimaJoyti/analytics-engine/internal/forecast"
	"github.com/DimaJoyti/analytics-engine/internal/models"
	"github.com/DimaJoyti/analytics-engine/internal/repository"
	"github.com/DimaJoyti/analytics-engine/internal/restock"
)

// Handlers bundles the services the operator surface reads from.
type Handlers struct {
	forecastEngine *forecast.Engine
	analyzer       *restock.Analyzer
	taskRuns       repository.TaskRunRepository
	logger         *zap.Logger

	defaultPeriods       int
	defaultLeadTimeDays  int
	defaultServiceLevel  float64
	bulkMaxProducts      int
	bulkWorkerPoolSize   int
}

// Config carries the analytics-tunable defaults used when a request omits
// them.
type Config struct {
	DefaultPeriods      int
	DefaultLeadTimeDays int
	DefaultServiceLevel float64
	BulkMaxProducts     int
	BulkWorkerPoolSize  int
}

// NewHandlers constructs a Handlers.
func NewHandlers(engine *forecast.Engine, analyzer *restock.Analyzer, taskRuns repository.TaskRunRepository, logger *zap.Logger, cfg Config) *Handlers {
	return &Handlers{
		forecastEngine:      engine,
		analyzer:            analyzer,
		taskRuns:            taskRuns,
		logger:              logger,
		defaultPeriods:      cfg.DefaultPeriods,
		defaultLeadTimeDays: cfg.DefaultLeadTimeDays,
		defaultServiceLevel: cfg.DefaultServiceLevel,
		bulkMaxProducts:     cfg.BulkMaxProducts,
		bulkWorkerPoolSize:  cfg.BulkWorkerPoolSize,
	}
}

// RegisterRoutes wires every handler onto mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/analytics/forecast", h.GetForecast)
	mux.HandleFunc("/analytics/cache/invalidate", h.InvalidateCache)
	mux.HandleFunc("/restock/bulk", h.BulkRestock)
	mux.HandleFunc("/tasks/runs", h.ListTaskRuns)
}

// RegisterOperationalRoutes wires the health/readiness/metrics endpoints,
// kept separate so main can mount them on their own listener.
func (h *Handlers) RegisterOperationalRoutes(mux *http.ServeMux, ready func() bool) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/ready", h.ReadinessCheck(ready))
	mux.Handle("/metrics", promhttp.Handler())
}

// GetForecast handles GET /analytics/forecast?scope=&periods=.
func (h *Handlers) GetForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	scopeParam := r.URL.Query().Get("scope")
	if scopeParam == "" {
		h.writeError(w, http.StatusBadRequest, "scope is required")
		return
	}

	periods := h.defaultPeriods
	if raw := r.URL.Query().Get("periods"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.writeError(w, http.StatusBadRequest, "periods must be a positive integer")
			return
		}
		periods = parsed
	}

	scope := resolveScope(scopeParam)
	frames, err := h.forecastEngine.Forecast(r.Context(), scope, periods, true)
	if err != nil {
		h.logger.Error("forecast failed", zap.String("scope", scopeParam), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to compute forecast")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"scope":   scopeParam,
		"periods": periods,
		"frames":  frames,
	})
}

func resolveScope(raw string) forecast.Scope {
	if strings.HasPrefix(raw, "product:") {
		return forecast.ProductScope(strings.TrimPrefix(raw, "product:"))
	}
	return forecast.Scope(raw)
}

// InvalidateCache handles POST /analytics/cache/invalidate.
func (h *Handlers) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		ProductIDs []string `json:"product_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.forecastEngine.Invalidate(r.Context(), req.ProductIDs); err != nil {
		h.logger.Error("cache invalidation failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to invalidate cache")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"invalidated": req.ProductIDs})
}

// BulkRestock handles POST /restock/bulk.
func (h *Handlers) BulkRestock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Products      []restock.ProductStock `json:"products"`
		WarehouseID   string                  `json:"warehouse_id"`
		LeadTimeDays  int                     `json:"lead_time_days"`
		MinPriority   string                  `json:"min_priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Products) == 0 {
		h.writeError(w, http.StatusBadRequest, "products is required")
		return
	}

	leadTimeDays := req.LeadTimeDays
	if leadTimeDays <= 0 {
		leadTimeDays = h.defaultLeadTimeDays
	}
	minPriority := models.Priority(req.MinPriority)
	if minPriority == "" {
		minPriority = models.PriorityLow
	}

	result, err := h.analyzer.Bulk(r.Context(), req.Products, req.WarehouseID, leadTimeDays, h.bulkMaxProducts, h.bulkWorkerPoolSize, minPriority)
	if err != nil {
		h.logger.Error("bulk restock analysis failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to analyze bulk restock")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ListTaskRuns handles GET /tasks/runs?task_name=&limit=.
func (h *Handlers) ListTaskRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	taskName := r.URL.Query().Get("task_name")
	if taskName == "" {
		h.writeError(w, http.StatusBadRequest, "task_name is required")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.taskRuns.ListByTask(r.Context(), taskName, limit)
	if err != nil {
		h.logger.Error("failed to list task runs", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list task runs")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// HealthCheck handles GET /health: process is up.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadinessCheck handles GET /ready: process is up and dependencies checked
// out by ready are reachable.
func (h *Handlers) ReadinessCheck(ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ready() {
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSON(w, statusCode, map[string]string{"error": message})
}
