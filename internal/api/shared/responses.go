package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the standard JSON body for error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes a JSON response with the given status code.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if payload == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// RespondWithError writes a standardized JSON error response. The message
// is client-facing and must never carry internal details or credentials.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithJSON(w, r, status, ErrorResponse{
		Error:   message,
		TraceID: GetTraceID(r.Context()),
	})
}

// RespondWithErrorAndLog writes a JSON error response and logs the
// underlying error with the trace ID. Server errors log at ERROR,
// client errors at WARN.
func RespondWithErrorAndLog(w http.ResponseWriter, r *http.Request, status int, publicMessage string, logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"status", status,
		"trace_id", GetTraceID(r.Context()),
		"path", r.URL.Path,
		"method", r.Method,
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), publicMessage, attrs...)
	} else {
		logger.WarnContext(r.Context(), publicMessage, attrs...)
	}

	RespondWithError(w, r, status, publicMessage)
}
