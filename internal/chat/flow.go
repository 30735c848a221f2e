package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/gorplabs/gorp/internal/skills"
)

// Input is the input for the Gorp chat Flow.
type Input struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"` // Required field: session ID
}

// Output is the output for the Gorp chat Flow.
type Output struct {
	Response  string         `json:"response"`
	SessionID string         `json:"sessionId"`
	Skill     *skills.Result `json:"skill,omitempty"` // Set when the model invoked a skill
}

// StreamChunk is the streaming output type for the chat Flow.
// Each chunk contains partial text that can be immediately displayed to the user.
type StreamChunk struct {
	Text string `json:"text"`
}

// FlowName is the registered name of the chat Flow in Genkit.
const FlowName = "gorp/chat"

// Flow is the type alias for the Gorp chat Genkit Streaming Flow.
// Exported for use in the api package with genkit.Handler().
type Flow = core.Flow[Input, Output, StreamChunk]

// Package-level singleton for Flow to prevent panic on re-registration.
var (
	flowOnce     sync.Once
	flow         *Flow
	flowInitDone bool
)

// InitFlow initializes the chat Flow singleton.
// Must be called exactly once during application startup.
// Returns error if called more than once.
func InitFlow(g *genkit.Genkit, agent *Agent) (*Flow, error) {
	var initialized bool
	flowOnce.Do(func() {
		flow = agent.DefineFlow(g)
		flowInitDone = true
		initialized = true
	})
	if !initialized && flowInitDone {
		return nil, fmt.Errorf("InitFlow called more than once")
	}
	return flow, nil
}

// GetFlow returns the initialized Flow singleton.
// Panics if InitFlow was not called - this indicates a programming error.
func GetFlow() *Flow {
	if !flowInitDone {
		panic("GetFlow called before InitFlow")
	}
	return flow
}

// ResetFlowForTesting resets the Flow singleton for testing.
// WARNING: Only use in tests. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
	flowInitDone = false
}

// DefineFlow defines the Genkit Streaming Flow for the Gorp agent.
// Supports both streaming (via callback) and non-streaming modes.
//
// The Flow is a lightweight wrapper; Agent.ExecuteStream() contains the
// core logic. Errors are wrapped with sentinel errors so HTTP handlers can
// use errors.Is() to determine the status code.
func (a *Agent) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			sessionID, err := uuid.Parse(input.SessionID)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
			}

			// When streamCb is nil (e.g. called via Run() instead of
			// Stream()), ExecuteStream operates in non-streaming mode.
			var callback StreamCallback
			if streamCb != nil {
				callback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					if chunk != nil && len(chunk.Content) > 0 {
						for _, part := range chunk.Content {
							if part.Text != "" {
								if streamErr := streamCb(ctx, StreamChunk{Text: part.Text}); streamErr != nil {
									return streamErr
								}
							}
						}
					}
					return nil
				}
			}

			resp, err := a.ExecuteStream(ctx, sessionID, input.Query, callback)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
			}

			return Output{
				Response:  resp.FinalText,
				SessionID: input.SessionID,
				Skill:     resp.Skill,
			}, nil
		},
	)
}
