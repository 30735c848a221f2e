package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorplabs/gorp/internal/chat"
	"github.com/gorplabs/gorp/internal/session"
	"github.com/gorplabs/gorp/internal/skills"
)

// writeJSON writes a JSON response with the given status code.
// Uses buffer-first strategy to ensure headers are only sent after successful
// encoding. This allows returning a proper 500 error if JSON encoding fails.
func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected
		slog.Debug("failed to write response body", "error", err)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps a domain error to its HTTP status and error code.
//
// Mapping:
//   - unknown session            -> 404
//   - schema/argument violations -> 422
//   - circuit open               -> 429
//   - provider failure           -> 502
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *skills.ValidationError
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session not found")
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_failed",
			Message: verr.Error(),
			Field:   verr.Field,
		})
	case errors.Is(err, skills.ErrUnknownSkill):
		writeError(w, http.StatusUnprocessableEntity, "unknown_skill", err.Error())
	case errors.Is(err, skills.ErrMalformedArguments):
		writeError(w, http.StatusUnprocessableEntity, "malformed_arguments", err.Error())
	case errors.Is(err, chat.ErrCircuitOpen):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "provider_overloaded", "model provider is overloaded, try again later")
	case errors.Is(err, chat.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, "invalid_session", "session ID is not a valid UUID")
	case errors.Is(err, chat.ErrExecutionFailed):
		writeError(w, http.StatusBadGateway, "provider_error", "model provider request failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
