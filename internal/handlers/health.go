package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"citerag/internal/contextutil"
)

// Pinger checks that a backing store is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ModelLister lists the models a generation backend serves.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	catalog            Pinger
	llm                ModelLister
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. Either dependency may be nil;
// a nil check reports "disabled".
func NewHealthHandler(catalog Pinger, llm ModelLister) *HealthHandler {
	return &HealthHandler{
		catalog:            catalog,
		llm:                llm,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// swagger:route GET /api/health healthCheck
//
// # Health check endpoint
//
// Returns 200 when the catalog is reachable. An unreachable LLM only degrades
// the service since answers fall back to extractive mode; an unreachable
// catalog returns 503.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Create context with timeout for health checks
	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string
	status := "healthy"
	httpStatus := http.StatusOK

	switch {
	case h.catalog == nil:
		checks["catalog"] = "disabled"
	case h.checkCatalog(checkCtx, logger):
		checks["catalog"] = "ok"
	default:
		checks["catalog"] = "error"
		issues = append(issues, "catalog_unavailable")
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	switch {
	case h.llm == nil:
		checks["llm"] = "disabled"
	case h.checkLLM(checkCtx, logger):
		checks["llm"] = "ok"
	default:
		checks["llm"] = "error"
		issues = append(issues, "llm_unavailable")
		if status == "healthy" {
			status = "degraded"
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	}
	writeJSON(ctx, w, httpStatus, response)
}

func (h *HealthHandler) checkCatalog(ctx context.Context, logger *slog.Logger) bool {
	if err := h.catalog.PingContext(ctx); err != nil {
		logger.WarnContext(ctx, "catalog health check failed", "error", err)
		return false
	}
	return true
}

func (h *HealthHandler) checkLLM(ctx context.Context, logger *slog.Logger) bool {
	models, err := h.llm.Models(ctx)
	if err != nil {
		logger.WarnContext(ctx, "llm health check failed", "error", err)
		return false
	}
	logger.DebugContext(ctx, "llm reachable", "models", len(models))
	return true
}
