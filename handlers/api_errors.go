package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/camden-git/photogallery/apperrors"
)

// APIErrorResponse is the uniform error body: {"error": "...", "code": "..."}.
type APIErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and message.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(httpStatus)

	_ = json.NewEncoder(w).Encode(APIErrorResponse{Error: message, Code: code})
}

// writeError maps any error onto the envelope; untyped errors become 500 with their raw message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	appErr := apperrors.From(err)
	if appErr.Status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", appErr.Code, "error", err)
	}
	WriteAPIError(w, appErr.Status, appErr.Code, appErr.Message)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Default().Error("failed to encode JSON response", "error", err)
		}
	}
}
