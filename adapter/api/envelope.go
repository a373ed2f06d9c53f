package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/raziel-gershoni/calbrew-sub001/internal/shared/apperror"
)

// envelope is the uniform response shape. Success responses carry data and
// an optional message; failures carry the caller-safe error and its code.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeSuccessMessage(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

// writeFailure classifies err and writes the failure envelope. Raw causes
// are logged, never returned to the caller.
func writeFailure(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := apperror.KindOf(err)
	status := apperror.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", string(kind), "error", err)
	}
	writeJSON(w, status, envelope{
		Success: false,
		Error:   apperror.MessageOf(err),
		Code:    string(kind),
	})
}
