package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/apperrors"
	"github.com/askdb/askdb/pkg/logging"
	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/services"
)

// maxAskBodyBytes bounds the request body of POST /ask.
const maxAskBodyBytes = 1 << 20

// AskHandler serves the question endpoint.
type AskHandler struct {
	askService services.AskService
	logger     *zap.Logger
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(askService services.AskService, logger *zap.Logger) *AskHandler {
	return &AskHandler{askService: askService, logger: logger}
}

// RegisterRoutes registers the ask route.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /ask", h.Ask)
}

// Ask handles POST /ask. The body is either JSON
// {"question", "identity": {"user_id", ...}, "limit"} or form fields
// question, user_id and optionally limit.
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)

	req, err := decodeAskRequest(r)
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	resp, err := h.askService.Ask(r.Context(), req)
	if err != nil {
		h.writeAskError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode ask response", zap.Error(err))
	}
}

func decodeAskRequest(r *http.Request) (models.AskRequest, error) {
	var req models.AskRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("malformed JSON body: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("malformed form body: %w", err)
		}
		req.Question = r.PostFormValue("question")
		if raw := strings.TrimSpace(r.PostFormValue("user_id")); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return req, fmt.Errorf("user_id must be an integer")
			}
			req.Identity.UserID = id
		}
		if raw := strings.TrimSpace(r.PostFormValue("limit")); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				return req, fmt.Errorf("limit must be an integer")
			}
			req.Limit = limit
		}
	}

	if req.Identity.UserID <= 0 {
		return req, errors.New("identity.user_id is required")
	}
	return req, nil
}

// writeAskError maps ask-flow errors onto HTTP responses.
func (h *AskHandler) writeAskError(w http.ResponseWriter, err error) {
	var (
		unsafeErr *apperrors.UnsafeSQLError
		execErr   *apperrors.ExecutionError
	)

	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		reason := strings.TrimPrefix(err.Error(), apperrors.ErrInvalidRequest.Error()+": ")
		_ = ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+reason)
	case errors.Is(err, apperrors.ErrUnknownUser):
		_ = ErrorResponse(w, http.StatusBadRequest, "Unknown user_id")
	case errors.As(err, &unsafeErr):
		_ = SQLErrorResponse(w, http.StatusBadRequest, "Unsafe or empty SQL", unsafeErr.SQL)
	case errors.As(err, &execErr):
		_ = SQLErrorResponse(w, http.StatusBadRequest, "SQL execution error: "+logging.SanitizeError(execErr.Cause), execErr.SQL)
	case errors.Is(err, apperrors.ErrSchemaEmpty):
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "Schema is empty. Check POSTGRES_DSN and that your database has tables.")
	case errors.Is(err, apperrors.ErrCatalogLoad):
		msg := logging.SanitizeError(err)
		h.logger.Warn("Schema catalog unavailable", zap.String("error", msg))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "Failed to load schema: "+msg)
	default:
		h.logger.Error("Ask failed", zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}
