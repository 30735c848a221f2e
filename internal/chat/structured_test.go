package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorplabs/gorp/internal/session"
	"github.com/gorplabs/gorp/internal/skills"
)

func fakeStructured(text string, err error) structuredFunc {
	return func(_ context.Context, _ []*ai.Message, _ any) (*ai.ModelResponse, error) {
		if err != nil {
			return nil, err
		}
		return textResponse(text), nil
	}
}

func TestDetectSarcasm(t *testing.T) {
	a, store := newTestAgent(t)
	a.structured = fakeStructured(`{"quote": "oh, wonderful", "score": 7}`, nil)

	id := store.Create()
	got, err := a.DetectSarcasm(context.Background(), id, "oh, wonderful")
	require.NoError(t, err)
	assert.Equal(t, "oh, wonderful", got.Quote)
	assert.Equal(t, 7, got.Score)

	history, err := store.History(id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, session.RoleUser, history[0].Role)
	assert.Contains(t, history[0].Content, "oh, wonderful")
	assert.Equal(t, session.RoleAssistant, history[1].Role)
	assert.Contains(t, history[1].Content, skills.NameSarcasmDetection)
}

func TestDetectSarcasm_FencedPayloadAccepted(t *testing.T) {
	a, store := newTestAgent(t)
	a.structured = fakeStructured("```json\n{\"quote\": \"sure\", \"score\": 3}\n```", nil)

	id := store.Create()
	got, err := a.DetectSarcasm(context.Background(), id, "sure")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Score)
}

func TestDetectSarcasm_OutOfRangeLeavesHistoryUntouched(t *testing.T) {
	a, store := newTestAgent(t)
	a.structured = fakeStructured(`{"quote": "hm", "score": 10}`, nil)

	id := store.Create()
	_, err := a.DetectSarcasm(context.Background(), id, "hm")
	require.Error(t, err)
	var verr *skills.ValidationError
	assert.ErrorAs(t, err, &verr)

	history, err := store.History(id)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDetectSarcasm_MalformedLeavesHistoryUntouched(t *testing.T) {
	a, store := newTestAgent(t)
	a.structured = fakeStructured(`not json at all`, nil)

	id := store.Create()
	_, err := a.DetectSarcasm(context.Background(), id, "hm")
	require.Error(t, err)
	assert.ErrorIs(t, err, skills.ErrMalformedArguments)

	history, err := store.History(id)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDetectSarcasm_ProviderError(t *testing.T) {
	a, store := newTestAgent(t)
	a.structured = fakeStructured("", errors.New("upstream down"))

	id := store.Create()
	_, err := a.DetectSarcasm(context.Background(), id, "hm")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionFailed)

	history, err := store.History(id)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDetectSarcasm_UnknownSession(t *testing.T) {
	a, _ := newTestAgent(t)
	a.structured = fakeStructured(`{"quote": "x", "score": 1}`, nil)

	_, err := a.DetectSarcasm(context.Background(), uuid.New(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestExplainJoke(t *testing.T) {
	a, store := newTestAgent(t)
	a.structured = fakeStructured(`{
		"setup": "A horse walks into a bar.",
		"premise": "Horses do not frequent bars.",
		"punchline": "The bartender asks: why the long face?",
		"joke_type": "pun",
		"funny_rating": 6
	}`, nil)

	id := store.Create()
	got, err := a.ExplainJoke(context.Background(), id, "Why the long face?")
	require.NoError(t, err)
	assert.Equal(t, "pun", got.JokeType)
	assert.Equal(t, 6, got.FunnyRating)

	history, err := store.History(id)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestDeliverJoke(t *testing.T) {
	a, store := newTestAgent(t)
	a.structured = fakeStructured(`{
		"setup": "I tried to file my taxes with a sundial.",
		"punchline": "It was about time.",
		"joke_type": "pun",
		"funny_rating": 4
	}`, nil)

	id := store.Create()
	got, err := a.DeliverJoke(context.Background(), id, "tax season")
	require.NoError(t, err)
	assert.Equal(t, "It was about time.", got.Punchline)

	history, err := store.History(id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Contains(t, history[0].Content, "tax season")
}

func TestDeliverJoke_NoTopic(t *testing.T) {
	a, store := newTestAgent(t)
	a.structured = fakeStructured(`{
		"setup": "s",
		"punchline": "p",
		"joke_type": "one-liner",
		"funny_rating": 1
	}`, nil)

	id := store.Create()
	_, err := a.DeliverJoke(context.Background(), id, "")
	require.NoError(t, err)

	history, err := store.History(id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Tell me a joke.", history[0].Content)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"whitespace", "  {\"a\":1}\n", `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.in))
		})
	}
}
