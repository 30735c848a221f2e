package chat

import (
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 5, estimateTokens("hello world")) // 11 runes / 2
}

func TestTruncateHistory_UnderBudgetUnchanged(t *testing.T) {
	a, _ := newTestAgent(t)
	msgs := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("hi")),
		ai.NewModelMessage(ai.NewTextPart("hello")),
	}

	got := a.truncateHistory(msgs, 1000)
	assert.Equal(t, msgs, got)
}

func TestTruncateHistory_DropsOldestFirst(t *testing.T) {
	a, _ := newTestAgent(t)

	old := ai.NewUserMessage(ai.NewTextPart(strings.Repeat("x", 200))) // ~100 tokens
	recent := ai.NewModelMessage(ai.NewTextPart(strings.Repeat("y", 100)))
	latest := ai.NewUserMessage(ai.NewTextPart(strings.Repeat("z", 100)))

	got := a.truncateHistory([]*ai.Message{old, recent, latest}, 110)
	require.Len(t, got, 2)
	assert.Same(t, recent, got[0])
	assert.Same(t, latest, got[1])
}

func TestTruncateHistory_KeepsSystemMessage(t *testing.T) {
	a, _ := newTestAgent(t)

	system := &ai.Message{Role: ai.RoleSystem, Content: []*ai.Part{ai.NewTextPart("persona")}}
	old := ai.NewUserMessage(ai.NewTextPart(strings.Repeat("x", 400)))
	recent := ai.NewModelMessage(ai.NewTextPart("short"))

	got := a.truncateHistory([]*ai.Message{system, old, recent}, 50)
	require.NotEmpty(t, got)
	assert.Same(t, system, got[0])
	assert.Same(t, recent, got[len(got)-1])
}

func TestEstimateMessagesTokens(t *testing.T) {
	msgs := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("aaaa")), // 2 tokens
		ai.NewModelMessage(ai.NewTextPart("bbbb")),
	}
	assert.Equal(t, 4, estimateMessagesTokens(msgs))
}
