package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/logging"
	"github.com/askdb/askdb/pkg/models"
)

// maxListedTables caps the table names returned by the schema diagnostics.
const maxListedTables = 50

// SchemaInspector is the catalog surface used by the diagnostics endpoints.
type SchemaInspector interface {
	EnsureLoaded(ctx context.Context) error
	Reload(ctx context.Context) error
	TableNames(ctx context.Context) []string
	ForeignKeys(ctx context.Context) []models.ForeignKeyEdge
}

// SchemaHandler serves catalog diagnostics.
type SchemaHandler struct {
	catalog SchemaInspector
	logger  *zap.Logger
}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler(catalog SchemaInspector, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{catalog: catalog, logger: logger}
}

// RegisterRoutes registers the schema diagnostics routes.
func (h *SchemaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/schema", h.Get)
	mux.HandleFunc("POST /debug/schema/reload", h.Reload)
}

// Get handles GET /debug/schema, loading the catalog on first use.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.EnsureLoaded(r.Context()); err != nil {
		h.writeLoadError(w, err)
		return
	}
	h.writeSummary(w, r.Context())
}

// Reload handles POST /debug/schema/reload. On failure the previous snapshot stays in use.
func (h *SchemaHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Reload(r.Context()); err != nil {
		h.writeLoadError(w, err)
		return
	}
	h.logger.Info("Schema catalog reloaded on request")
	h.writeSummary(w, r.Context())
}

func (h *SchemaHandler) writeSummary(w http.ResponseWriter, ctx context.Context) {
	names := h.catalog.TableNames(ctx)
	listed := names
	if len(listed) > maxListedTables {
		listed = listed[:maxListedTables]
	}
	summary := models.SchemaSummary{
		Loaded:      true,
		TablesCount: len(names),
		Tables:      listed,
		FKsCount:    len(h.catalog.ForeignKeys(ctx)),
	}
	if err := WriteJSON(w, http.StatusOK, summary); err != nil {
		h.logger.Error("Failed to encode schema summary", zap.Error(err))
	}
}

func (h *SchemaHandler) writeLoadError(w http.ResponseWriter, err error) {
	msg := logging.SanitizeError(err)
	h.logger.Warn("Schema catalog load failed", zap.String("error", msg))
	summary := models.SchemaSummary{Loaded: false, Tables: []string{}, Error: msg}
	if err := WriteJSON(w, http.StatusServiceUnavailable, summary); err != nil {
		h.logger.Error("Failed to encode schema summary", zap.Error(err))
	}
}
