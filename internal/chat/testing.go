package chat

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"

	"github.com/gorplabs/gorp/internal/session"
)

// NewFakeAgent builds an Agent whose provider calls are served by the given
// fakes instead of a Dotprompt. Prompt loading is skipped entirely, so no
// Genkit model plugin is needed.
//
// Intended for tests; production code must use New.
func NewFakeAgent(
	store *session.Store,
	logger *slog.Logger,
	generate func(ctx context.Context, messages []*ai.Message, callback StreamCallback) (*ai.ModelResponse, error),
	structured func(ctx context.Context, messages []*ai.Message, outputType any) (*ai.ModelResponse, error),
) *Agent {
	a := &Agent{
		maxTurns:       5,
		retryConfig:    DefaultRetryConfig(),
		circuitBreaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		tokenBudget:    DefaultTokenBudget(),
		sessions:       store,
		logger:         logger,
	}
	a.generate = generate
	a.structured = structured
	return a
}
