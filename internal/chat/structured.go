package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/gorplabs/gorp/internal/session"
	"github.com/gorplabs/gorp/internal/skills"
)

// structuredFunc produces a model response constrained to a structured
// output type. The default implementation calls genkit.Generate; tests
// substitute fakes.
type structuredFunc func(ctx context.Context, messages []*ai.Message, outputType any) (*ai.ModelResponse, error)

// structuredRequest describes one forced-skill generation.
type structuredRequest struct {
	skill      string
	userText   string
	outputType any
}

// DetectSarcasm forces the model down the sarcasm-detection path for the
// given quote and returns the scored result.
func (a *Agent) DetectSarcasm(ctx context.Context, sessionID uuid.UUID, quote string) (*skills.SarcasmDetection, error) {
	result, err := a.runStructured(ctx, sessionID, structuredRequest{
		skill:      skills.NameSarcasmDetection,
		userText:   "How sarcastic is this quote? Rate it: " + quote,
		outputType: skills.SarcasmDetection{},
	})
	if err != nil {
		return nil, err
	}
	return result.Sarcasm, nil
}

// ExplainJoke forces the model to break the given joke down into its
// setup, premise, and punchline.
func (a *Agent) ExplainJoke(ctx context.Context, sessionID uuid.UUID, joke string) (*skills.JokeExplanation, error) {
	result, err := a.runStructured(ctx, sessionID, structuredRequest{
		skill:      skills.NameJokeExplanation,
		userText:   "Explain this joke to me: " + joke,
		outputType: skills.JokeExplanation{},
	})
	if err != nil {
		return nil, err
	}
	return result.Explanation, nil
}

// DeliverJoke forces the model to tell an original joke, optionally about
// the given topic.
func (a *Agent) DeliverJoke(ctx context.Context, sessionID uuid.UUID, topic string) (*skills.JokeDelivery, error) {
	userText := "Tell me a joke."
	if topic != "" {
		userText = "Tell me a joke about " + topic + "."
	}
	result, err := a.runStructured(ctx, sessionID, structuredRequest{
		skill:      skills.NameJokeDelivery,
		userText:   userText,
		outputType: skills.JokeDelivery{},
	})
	if err != nil {
		return nil, err
	}
	return result.Delivery, nil
}

// runStructured performs one forced-skill generation against the session.
//
// The structured payload is decoded and validated before anything is
// appended to history; a malformed or out-of-range payload leaves the
// session untouched. On success both the user turn and the structured
// assistant turn are recorded.
func (a *Agent) runStructured(ctx context.Context, sessionID uuid.UUID, req structuredRequest) (*skills.Result, error) {
	release, err := a.sessions.Serialize(sessionID)
	if err != nil {
		return nil, fmt.Errorf("serialize session: %w", err)
	}
	defer release()

	history, err := a.sessions.History(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	messages := deepCopyMessages(toModelMessages(history))
	messages = a.truncateHistory(messages, a.tokenBudget.MaxHistoryTokens)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(req.userText)))

	if err := a.circuitBreaker.Allow(); err != nil {
		a.logger.Warn("circuit breaker is open, rejecting request",
			"state", a.circuitBreaker.State().String())
		return nil, fmt.Errorf("service unavailable: %w", err)
	}

	resp, err := a.structured(ctx, messages, req.outputType)
	if err != nil {
		a.circuitBreaker.Failure()
		return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}
	a.circuitBreaker.Success()

	result, err := skills.Decode(req.skill, json.RawMessage(extractJSON(resp.Text())))
	if err != nil {
		a.logger.Warn("structured skill response rejected",
			"skill", req.skill,
			"session_id", sessionID,
			"error", err)
		return nil, err
	}

	if err := a.sessions.Append(sessionID, session.Message{Role: session.RoleUser, Content: req.userText}); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	if err := a.sessions.Append(sessionID, session.Message{Role: session.RoleAssistant, Content: result.JSON()}); err != nil {
		a.logger.Error("failed to append assistant message",
			"session_id", sessionID,
			"error", err)
	}

	return result, nil
}

// genkitStructured is the default structuredFunc implementation. It
// prepends the rendered Gorp persona so forced-skill calls stay in
// character without the tool loop.
func (a *Agent) genkitStructured(ctx context.Context, messages []*ai.Message, outputType any) (*ai.ModelResponse, error) {
	persona, err := a.personaMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("render persona: %w", err)
	}

	opts := []ai.GenerateOption{
		ai.WithMessages(append(persona, messages...)...),
		ai.WithOutputType(outputType),
	}
	if a.modelName != "" {
		opts = append(opts, ai.WithModelName(a.modelName))
	}
	if genCfg := a.generationConfig(); genCfg != nil {
		opts = append(opts, ai.WithConfig(genCfg))
	}
	return genkit.Generate(ctx, a.g, opts...)
}

// personaMessages renders the Gorp Dotprompt into its system message so
// forced-skill calls keep the persona without the tool loop.
func (a *Agent) personaMessages(ctx context.Context) ([]*ai.Message, error) {
	rendered, err := a.prompt.Render(ctx, map[string]any{
		"current_date": time.Now().Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}
	return rendered.Messages, nil
}

// extractJSON strips a Markdown code fence if the model wrapped its
// structured payload in one.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
