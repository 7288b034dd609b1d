package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/config"
	"github.com/askdb/askdb/pkg/logging"
)

const readyTimeout = 3 * time.Second

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthResponse is the liveness answer.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse reports whether queries can be answered right now.
type ReadyResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	SchemaLoaded bool   `json:"schema_loaded"`
	Error        string `json:"error,omitempty"`
}

// ReadinessProbe is the dependency surface checked by GET /ready.
type ReadinessProbe interface {
	Ping(ctx context.Context) error
	Loaded() bool
}

// HealthHandler serves liveness, readiness and build details.
type HealthHandler struct {
	cfg    *config.Config
	probe  ReadinessProbe
	logger *zap.Logger
}

// NewHealthHandler creates a HealthHandler. A nil probe disables GET /ready.
func NewHealthHandler(cfg *config.Config, probe ReadinessProbe, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, probe: probe, logger: logger}
}

// RegisterRoutes registers the health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
	if h.probe != nil {
		mux.HandleFunc("GET /ready", h.Ready)
	}
}

// Health handles GET /health. It does not touch the database.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"}); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ready handles GET /ready: 200 when the target database answers, 503 otherwise.
// An unloaded catalog is reported but does not fail readiness; it loads on first use.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := ReadyResponse{Status: "ok", Database: "ok", SchemaLoaded: h.probe.Loaded()}
	status := http.StatusOK
	if err := h.probe.Ping(ctx); err != nil {
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		resp.Error = logging.SanitizeError(err)
		status = http.StatusServiceUnavailable
		h.logger.Warn("Readiness check failed", zap.String("error", resp.Error))
	}

	if err := WriteJSON(w, status, resp); err != nil {
		h.logger.Error("Failed to encode ready response", zap.Error(err))
	}
}

// Ping handles GET /ping with version and environment details.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		_ = ErrorResponse(w, http.StatusInternalServerError, "failed to get hostname")
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "askdb",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
