package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorplabs/gorp/internal/chat"
	"github.com/gorplabs/gorp/internal/session"
	"github.com/gorplabs/gorp/internal/skills"
)

// SSE event types for chat streaming.
const (
	EventChunk = "chunk" // Partial response text
	EventSkill = "skill" // Structured skill invocation
	EventDone  = "done"  // Stream completed successfully
	EventError = "error" // Error occurred during streaming
)

// ChunkPayload is the SSE data payload for streaming text chunks.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload is the SSE data payload when streaming completes successfully.
type DonePayload struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// ErrorPayload is the SSE data payload when an error occurs.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// messageRequest is the body of POST /chat/{session_id}/message.
type messageRequest struct {
	Content string `json:"content"`
}

// chatHandler serves the SSE chat endpoint on top of the Genkit Flow.
type chatHandler struct {
	flow   *chat.Flow
	store  *session.Store
	logger *slog.Logger
}

// sendMessage handles POST /chat/{session_id}/message.
//
// Validation failures and unknown sessions are rejected with plain JSON
// before any SSE bytes are written; once the stream starts, failures are
// reported as SSE error events. A client disconnect mid-stream does not
// abort history finalization: the agent appends the partial assistant turn
// regardless.
func (h *chatHandler) sendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseSessionID(w, r)
	if !ok {
		return
	}

	var req messageRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_body", "request body must be JSON with a content field")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusUnprocessableEntity, "missing_content", "content is required")
		return
	}

	// Reject unknown sessions with a proper 404 before committing to SSE.
	if _, err := h.store.History(id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "session_id", id)

	input := chat.Input{Query: req.Content, SessionID: id.String()}

	var (
		finalOutput chat.Output
		streamErr   error
		chunkCount  int
	)

	for streamValue, err := range h.flow.Stream(ctx, input) {
		if err != nil {
			streamErr = err
			break
		}

		if streamValue.Done {
			finalOutput = streamValue.Output
			break
		}

		if streamValue.Stream.Text != "" {
			chunkCount++
			if err := writeEvent(w, flusher, EventChunk, ChunkPayload{
				Text: streamValue.Stream.Text,
			}); err != nil {
				// Write failure usually means the client disconnected.
				// The flow keeps running server-side so history still
				// finalizes; nothing more to send.
				h.logger.Info("client disconnected mid-stream", "session_id", id, "error", err)
				return
			}
		}
	}

	if streamErr != nil {
		h.writeStreamError(w, flusher, streamErr)
		return
	}

	if finalOutput.Skill != nil {
		if err := writeEvent(w, flusher, EventSkill, finalOutput.Skill); err != nil {
			h.logger.Info("client disconnected before skill event", "session_id", id)
			return
		}
	}

	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Response:  finalOutput.Response,
		SessionID: finalOutput.SessionID,
	})

	h.logger.Info("SSE stream completed",
		"session_id", id,
		"chunks", chunkCount,
		"skill", finalOutput.Skill != nil,
	)
}

// writeStreamError maps agent errors to SSE error events.
func (h *chatHandler) writeStreamError(w io.Writer, f http.Flusher, err error) {
	code := "stream_error"

	var verr *skills.ValidationError
	switch {
	case errors.Is(err, session.ErrNotFound):
		code = "session_not_found"
	case errors.As(err, &verr), errors.Is(err, skills.ErrMalformedArguments):
		code = "invalid_skill_payload"
	case errors.Is(err, chat.ErrCircuitOpen):
		code = "provider_overloaded"
	case errors.Is(err, chat.ErrInvalidSession):
		code = "invalid_session"
	case errors.Is(err, chat.ErrExecutionFailed):
		code = "provider_error"
	}

	h.logger.Warn("SSE stream failed", "code", code, "error", err)
	_ = writeEvent(w, f, EventError, ErrorPayload{
		Code:    code,
		Message: err.Error(),
	})
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
