package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/gorplabs/gorp/internal/session"
)

// sessionHandler serves session creation and history retrieval.
type sessionHandler struct {
	store  *session.Store
	logger *slog.Logger
}

// createSessionResponse is the body returned by POST /chat/session.
type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

// historyResponse is the body returned by GET /chat/{session_id}/history.
type historyResponse struct {
	Messages []session.Message `json:"messages"`
}

// create handles POST /chat/session.
// Returns 201 with the new session ID. The session starts with empty history.
func (h *sessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	id := h.store.Create()
	h.logger.Info("session created", "session_id", id)
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: id.String()})
}

// history handles GET /chat/{session_id}/history.
// Returns the full ordered transcript for the session.
func (h *sessionHandler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	messages, err := h.store.History(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if messages == nil {
		messages = []session.Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Messages: messages})
}

// parseSessionID extracts and validates the {session_id} path value.
// Writes a 400 response and returns false when the value is not a UUID.
func parseSessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session", "session ID is not a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
