package web

import (
	"encoding/json"
	"net/http"

	"minimarket-copilot/internal/apperr"
	"minimarket-copilot/internal/logger"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeAppError maps err through apperr. Server-side failures are logged with
// their cause; the client only sees the public message.
func writeAppError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	code, message := apperr.PublicMessage(err)
	status := apperr.MetadataFor(code).HTTPStatus
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", err)
	}
	writeError(w, r, message, string(code), status)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
