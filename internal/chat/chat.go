// Package chat implements Gorp's conversational agent.
// It drives the LLM through a Dotprompt persona, records skill invocations,
// and keeps per-session history append-only and consistent under streaming.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gorplabs/gorp/internal/session"
	"github.com/gorplabs/gorp/internal/skills"
)

const (
	// Name is the unique identifier for the Gorp agent.
	Name = "gorp"

	// GorpPromptName is the name of the Dotprompt file that carries the
	// Gorp persona. This corresponds to prompts/gorp.prompt.
	GorpPromptName = "gorp"
)

// Response represents the complete result of an agent execution.
type Response struct {
	FinalText string         // Model's final text output (may be empty)
	Skill     *skills.Result // Structured skill invocation, nil for plain replies
}

// StreamCallback is called for each chunk of streaming response.
// The chunk contains partial content that can be immediately forwarded to the client.
// Return an error to abort the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// generateFunc produces a model response for the given conversation.
// The default implementation executes the Dotprompt; tests substitute fakes.
type generateFunc func(ctx context.Context, messages []*ai.Message, callback StreamCallback) (*ai.ModelResponse, error)

// Config contains all required parameters for the Gorp agent.
type Config struct {
	Genkit       *genkit.Genkit
	SessionStore *session.Store
	Logger       *slog.Logger
	Skills       []ai.Tool // Pre-registered skill tools from skills.Register()

	// ModelName overrides the model configured in prompts/gorp.prompt
	// when non-empty (e.g. "ollama/llama3.2").
	ModelName string

	MaxTurns int // Maximum agentic loop turns

	// Sampling overrides forwarded to the provider. Zero values defer to
	// the prompt's own model config.
	Temperature float64
	MaxTokens   int

	// Resilience configuration
	RetryConfig          RetryConfig          // LLM retry settings (zero-value uses defaults)
	CircuitBreakerConfig CircuitBreakerConfig // Circuit breaker settings (zero-value uses defaults)
	RateLimiter          *rate.Limiter        // Optional: proactive rate limiting (nil = use default)

	// Token management
	TokenBudget TokenBudget // Token budget for context window (zero-value uses defaults)
}

// validate checks if all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.SessionStore == nil {
		return errors.New("session store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Skills) == 0 {
		return errors.New("at least one skill is required")
	}
	return nil
}

// Agent is Gorp's conversational engine.
//
// Agent is stateless apart from the circuit breaker; all configuration is
// captured immutably at construction time for thread-safe concurrent access.
type Agent struct {
	// Immutable configuration (captured at construction)
	modelName   string
	maxTurns    int
	temperature float64
	maxTokens   int

	// Resilience (captured at construction)
	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
	rateLimiter    *rate.Limiter

	// Token management (captured at construction)
	tokenBudget TokenBudget

	// Dependencies (read-only after construction)
	g          *genkit.Genkit
	sessions   *session.Store
	logger     *slog.Logger
	skills     []ai.Tool
	toolRefs   []ai.ToolRef // Cached at construction (ai.Tool implements ai.ToolRef)
	skillNames string       // Cached as comma-separated for logging
	prompt     ai.Prompt    // Cached Dotprompt instance

	// Provider calls; tests replace these with fakes.
	generate   generateFunc
	structured structuredFunc
}

// New creates a new Gorp agent with required configuration.
//
// The LLM model defaults to the one configured in prompts/gorp.prompt and
// can be overridden via Config.ModelName.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}

	// Apply resilience defaults if not configured
	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	cbConfig := cfg.CircuitBreakerConfig
	if cbConfig.FailureThreshold == 0 {
		cbConfig = DefaultCircuitBreakerConfig()
	}

	tokenBudget := cfg.TokenBudget
	if tokenBudget.MaxHistoryTokens == 0 {
		tokenBudget = DefaultTokenBudget()
	}

	// Default: 10 requests/sec sustained, burst of 30
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	// Cache tool refs and names at construction (zero allocation per request)
	toolRefs := make([]ai.ToolRef, len(cfg.Skills))
	names := make([]string, len(cfg.Skills))
	for i, t := range cfg.Skills {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	a := &Agent{
		modelName:   cfg.ModelName,
		maxTurns:    maxTurns,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,

		retryConfig:    retryConfig,
		circuitBreaker: NewCircuitBreaker(cbConfig),
		rateLimiter:    rl,

		tokenBudget: tokenBudget,

		g:          cfg.Genkit,
		sessions:   cfg.SessionStore,
		logger:     cfg.Logger,
		skills:     cfg.Skills,
		toolRefs:   toolRefs,
		skillNames: strings.Join(names, ", "),
	}
	a.generate = a.promptGenerate
	a.structured = a.genkitStructured

	a.prompt = genkit.LookupPrompt(a.g, GorpPromptName)
	if a.prompt == nil {
		return nil, fmt.Errorf("dotprompt '%s' not found: ensure prompts directory is configured correctly", GorpPromptName)
	}

	a.logger.Info("gorp agent initialized",
		"skills", a.skillNames,
		"maxTurns", a.maxTurns,
	)

	return a, nil
}

// Execute runs the agent with the given input (non-streaming).
// This is a convenience wrapper around ExecuteStream with nil callback.
func (a *Agent) Execute(ctx context.Context, sessionID uuid.UUID, input string) (*Response, error) {
	return a.ExecuteStream(ctx, sessionID, input, nil)
}

// ExecuteStream runs the agent with optional streaming output.
//
// The user message is appended to history before the provider call, and an
// assistant message is appended exactly once when the call finishes, whether
// it succeeded, failed mid-stream, or produced a skill invocation. On failure
// the assistant message holds whatever text was streamed before the error.
// Concurrent calls for the same session are serialized; the second caller
// blocks until the first finishes.
func (a *Agent) ExecuteStream(ctx context.Context, sessionID uuid.UUID, input string, callback StreamCallback) (*Response, error) {
	streaming := callback != nil
	a.logger.Debug("executing gorp agent",
		"session_id", sessionID,
		"streaming", streaming)

	release, err := a.sessions.Serialize(sessionID)
	if err != nil {
		return nil, fmt.Errorf("serialize session: %w", err)
	}
	defer release()

	history, err := a.sessions.History(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// The user turn is recorded up front so a failed generation still
	// leaves it in history.
	if err := a.sessions.Append(sessionID, session.Message{Role: session.RoleUser, Content: input}); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	// Accumulate streamed text so a mid-stream failure can persist the
	// partial content the client already saw.
	var streamed strings.Builder
	wrapped := callback
	if callback != nil {
		wrapped = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			if chunk != nil {
				for _, part := range chunk.Content {
					streamed.WriteString(part.Text)
				}
			}
			return callback(ctx, chunk)
		}
	}

	// Skill tool invocations land in the recorder.
	ctx, recorder := skills.WithRecorder(ctx)

	var assistant string
	defer func() {
		if appendErr := a.sessions.Append(sessionID, session.Message{Role: session.RoleAssistant, Content: assistant}); appendErr != nil {
			a.logger.Error("failed to append assistant message",
				"session_id", sessionID,
				"error", appendErr)
		}
	}()

	resp, err := a.generateResponse(ctx, toModelMessages(history), input, wrapped)
	if err != nil {
		assistant = streamed.String()
		return nil, err
	}

	if result := recorder.Result(); result != nil {
		// The structured payload becomes the assistant turn so history
		// round-trips the skill output verbatim.
		assistant = result.JSON()
		return &Response{FinalText: resp.Text(), Skill: result}, nil
	}

	// An empty reply stays empty; it is still a completed turn.
	assistant = resp.Text()
	return &Response{FinalText: assistant}, nil
}

// generateResponse is the unified response generation logic for both
// streaming and non-streaming modes, guarded by the circuit breaker.
func (a *Agent) generateResponse(ctx context.Context, historyMessages []*ai.Message, input string, callback StreamCallback) (*ai.ModelResponse, error) {
	// Build messages: deep copy history and append current user input.
	// Deep copy is required because Genkit's renderMessages() modifies
	// msg.Content in-place, racing with concurrent executions that share
	// message objects.
	messages := deepCopyMessages(historyMessages)

	// Apply token budget before adding the new message
	messages = a.truncateHistory(messages, a.tokenBudget.MaxHistoryTokens)

	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(input)))

	if err := a.circuitBreaker.Allow(); err != nil {
		a.logger.Warn("circuit breaker is open, rejecting request",
			"state", a.circuitBreaker.State().String())
		return nil, fmt.Errorf("service unavailable: %w", err)
	}

	resp, err := a.generate(ctx, messages, callback)
	if err != nil {
		a.circuitBreaker.Failure()
		return nil, err
	}

	a.circuitBreaker.Success()
	return resp, nil
}

// promptGenerate executes the Gorp Dotprompt with retry. This is the
// default generateFunc implementation.
func (a *Agent) promptGenerate(ctx context.Context, messages []*ai.Message, callback StreamCallback) (*ai.ModelResponse, error) {
	opts := []ai.PromptExecuteOption{
		ai.WithInput(map[string]any{
			"current_date": time.Now().Format("2006-01-02"),
		}),
		ai.WithMessagesFn(func(_ context.Context, _ any) ([]*ai.Message, error) {
			return messages, nil
		}),
		ai.WithTools(a.toolRefs...),
		ai.WithMaxTurns(a.maxTurns),
	}

	if a.modelName != "" {
		opts = append(opts, ai.WithModelName(a.modelName))
	}
	if genCfg := a.generationConfig(); genCfg != nil {
		opts = append(opts, ai.WithConfig(genCfg))
	}

	if callback != nil {
		opts = append(opts, ai.WithStreaming(callback))
	}

	a.logger.Debug("executing prompt",
		"skills", a.skillNames,
		"maxTurns", a.maxTurns,
		"messageCount", len(messages),
	)

	return a.executeWithRetry(ctx, opts)
}

// generationConfig builds the provider sampling config from the agent's
// temperature and token-limit overrides. Returns nil when neither is set,
// letting the prompt's own model config apply.
func (a *Agent) generationConfig() *ai.GenerationCommonConfig {
	if a.temperature == 0 && a.maxTokens == 0 {
		return nil
	}
	cfg := &ai.GenerationCommonConfig{}
	if a.temperature != 0 {
		cfg.Temperature = a.temperature
	}
	if a.maxTokens != 0 {
		cfg.MaxOutputTokens = a.maxTokens
	}
	return cfg
}

// toModelMessages converts stored session history to Genkit messages.
func toModelMessages(history []session.Message) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case session.RoleUser:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case session.RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		case session.RoleSystem:
			msgs = append(msgs, &ai.Message{
				Role:    ai.RoleSystem,
				Content: []*ai.Part{ai.NewTextPart(m.Content)},
			})
		}
	}
	return msgs
}

// deepCopyMessages creates independent copies of Message and Part structs.
//
// Genkit's renderMessages() modifies msg.Content in-place, causing data
// races in concurrent executions that share message objects. This creates
// independent struct copies to prevent the race.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart creates an independent copy of an ai.Part struct.
// ToolRequest.Input and ToolResponse.Output are type any and copied by
// reference; renderMessages() only mutates the Content slice.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	if p.Resource != nil {
		cp.Resource = &ai.ResourcePart{Uri: p.Resource.Uri}
	}
	return cp
}

// shallowCopyMap copies map keys and values but not nested structures.
func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
