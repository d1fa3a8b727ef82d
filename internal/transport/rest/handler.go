package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "soulverse/internal/common/errors"
	"soulverse/internal/common/logger"
	"soulverse/internal/common/validation"
	"soulverse/internal/service"
)

const maxBodyBytes = 64 << 10

type CompatHandler struct {
	service *service.CompatService
	logger  logger.Logger
}

func NewCompatHandler(svc *service.CompatService, log logger.Logger) *CompatHandler {
	return &CompatHandler{
		service: svc,
		logger:  log.With(map[string]interface{}{"component": "compat-handler"}),
	}
}

// errorBody is the failure payload of POST /compat.
type errorBody struct {
	Error  bool   `json:"error"`
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// Post handles POST /compat
func (h *CompatHandler) Post(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, apperrors.NewValidationError("request body too large"))
			return
		}
		h.fail(w, r, apperrors.NewValidationError("failed to read request body"))
		return
	}

	input, err := validation.DecodeCompatInput(body)
	if err != nil {
		h.fail(w, r, apperrors.AsStandardError(err))
		return
	}

	res := h.service.Generate(r.Context(), input)
	if res.Err != nil {
		h.fail(w, r, res.Err)
		return
	}

	writeJSON(w, http.StatusOK, res.Report)
}

// Get handles GET /compat
func (h *CompatHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Health())
}

func (h *CompatHandler) fail(w http.ResponseWriter, r *http.Request, stdErr *apperrors.StandardError) {
	status := apperrors.HTTPStatus(stdErr.Code)
	fields := map[string]interface{}{
		"requestId": RequestIDFromContext(r.Context()),
		"code":      string(stdErr.Code),
		"status":    status,
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithError(stdErr).Error("compat request failed", fields)
	} else {
		h.logger.Warn("compat request rejected", fields)
	}

	writeJSON(w, status, errorBody{
		Error:  true,
		Detail: stdErr.Detail(),
		Code:   string(stdErr.Code),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Error: true, Detail: detail})
}
