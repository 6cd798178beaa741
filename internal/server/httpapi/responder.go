package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/voicejournal/internal/common"
	"github.com/dmitrijs2005/voicejournal/internal/logging"
)

// ErrorResponse is the JSON error envelope. Errors is only populated for
// validation failures.
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  []common.FieldError `json:"errors,omitempty"`
}

func writeJSON(ctx context.Context, logger logging.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing left to do but log.
		logger.Error(ctx, "failed to encode response", "error", err.Error())
	}
}

// writeError is the single place the error taxonomy becomes HTTP. Every
// handler forwards failures here; exactly one response is sent per request.
// 4xx responses carry the error's message, 5xx responses a generic one.
func writeError(ctx context.Context, logger logging.Logger, w http.ResponseWriter, err error) {
	var valErr *common.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(ctx, logger, w, http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Errors:  valErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, common.ErrNotFound):
		writeJSON(ctx, logger, w, http.StatusNotFound, ErrorResponse{Message: "Resource not found"})
	case errors.Is(err, common.ErrNoAudio):
		writeJSON(ctx, logger, w, http.StatusBadRequest, ErrorResponse{Message: "No audio associated with this entry"})
	case errors.Is(err, common.ErrBadRequest):
		writeJSON(ctx, logger, w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		writeJSON(ctx, logger, w, http.StatusUnauthorized, ErrorResponse{Message: "Unauthorized"})
	case errors.Is(err, common.ErrConflict):
		writeJSON(ctx, logger, w, http.StatusConflict, ErrorResponse{Message: "Conflict"})
	default:
		logger.Error(ctx, "internal error", "error", err.Error())
		writeJSON(ctx, logger, w, http.StatusInternalServerError, ErrorResponse{Message: "Something went wrong"})
	}
}
