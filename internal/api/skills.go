package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/gorplabs/gorp/internal/skills"
)

// gorpAgent is the subset of the chat agent the forced-skill endpoints use.
type gorpAgent interface {
	DetectSarcasm(ctx context.Context, sessionID uuid.UUID, quote string) (*skills.SarcasmDetection, error)
	ExplainJoke(ctx context.Context, sessionID uuid.UUID, joke string) (*skills.JokeExplanation, error)
	DeliverJoke(ctx context.Context, sessionID uuid.UUID, topic string) (*skills.JokeDelivery, error)
}

// skillHandler serves the forced-skill endpoints and schema discovery.
type skillHandler struct {
	agent  gorpAgent
	logger *slog.Logger
}

// skillRequest is the body of the POST forced-skill endpoints.
type skillRequest struct {
	Content string `json:"content"`
}

// decodeSkillRequest parses and validates a forced-skill request body.
func decodeSkillRequest(w http.ResponseWriter, r *http.Request) (skillRequest, bool) {
	var req skillRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_body", "request body must be JSON with a content field")
		return skillRequest{}, false
	}
	if req.Content == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing_content", "content is required")
		return skillRequest{}, false
	}
	return req, true
}

// sarcasm handles POST /chat/{session_id}/sarcasm.
// Forces the model down the sarcasm-detection path for the given content.
func (h *skillHandler) sarcasm(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	req, ok := decodeSkillRequest(w, r)
	if !ok {
		return
	}

	result, err := h.agent.DetectSarcasm(r.Context(), id, req.Content)
	if err != nil {
		h.logger.Warn("sarcasm detection failed", "session_id", id, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// jokeExplanation handles POST /chat/{session_id}/joke_explanation.
func (h *skillHandler) jokeExplanation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	req, ok := decodeSkillRequest(w, r)
	if !ok {
		return
	}

	result, err := h.agent.ExplainJoke(r.Context(), id, req.Content)
	if err != nil {
		h.logger.Warn("joke explanation failed", "session_id", id, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// jokeDelivery handles GET /chat/{session_id}/joke_delivery.
// The topic query parameter is optional; without it Gorp picks its own.
func (h *skillHandler) jokeDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	topic := r.URL.Query().Get("topic")
	result, err := h.agent.DeliverJoke(r.Context(), id, topic)
	if err != nil {
		h.logger.Warn("joke delivery failed", "session_id", id, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// schemas handles GET /api/skills.
// Returns the JSON Schemas of the three declared skills, keyed by name.
func (h *skillHandler) schemas(w http.ResponseWriter, _ *http.Request) {
	s, err := skills.Schemas()
	if err != nil {
		h.logger.Error("failed to derive skill schemas", "error", err)
		writeError(w, http.StatusInternalServerError, "schema_error", "failed to derive skill schemas")
		return
	}
	writeJSON(w, http.StatusOK, s)
}
