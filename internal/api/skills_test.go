package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorplabs/gorp/internal/skills"
)

func TestSarcasmEndpoint(t *testing.T) {
	handler, store := newTestServer(t, echoGenerate("hi"),
		structuredJSON(`{"quote": "oh, fantastic", "score": 8}`))

	id := createTestSession(t, store)
	req := httptest.NewRequest(http.MethodPost, "/chat/"+id.String()+"/sarcasm",
		jsonBody(t, map[string]string{"content": "oh, fantastic"}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got skills.SarcasmDetection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "oh, fantastic", got.Quote)
	assert.Equal(t, 8, got.Score)

	// Both turns are recorded.
	history, err := store.History(id)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSarcasmEndpoint_OutOfRangeScore(t *testing.T) {
	handler, store := newTestServer(t, echoGenerate("hi"),
		structuredJSON(`{"quote": "hm", "score": 42}`))

	id := createTestSession(t, store)
	req := httptest.NewRequest(http.MethodPost, "/chat/"+id.String()+"/sarcasm",
		jsonBody(t, map[string]string{"content": "hm"}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_failed", body.Error)
	assert.Equal(t, "score", body.Field)

	// Failed validation must not touch history.
	history, err := store.History(id)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSarcasmEndpoint_MalformedModelOutput(t *testing.T) {
	handler, store := newTestServer(t, echoGenerate("hi"), structuredJSON("garbage"))

	id := createTestSession(t, store)
	req := httptest.NewRequest(http.MethodPost, "/chat/"+id.String()+"/sarcasm",
		jsonBody(t, map[string]string{"content": "hm"}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "malformed_arguments")
}

func TestSarcasmEndpoint_ProviderError(t *testing.T) {
	structured := func(context.Context, []*ai.Message, any) (*ai.ModelResponse, error) {
		return nil, errors.New("upstream down")
	}
	handler, store := newTestServer(t, echoGenerate("hi"), structured)

	id := createTestSession(t, store)
	req := httptest.NewRequest(http.MethodPost, "/chat/"+id.String()+"/sarcasm",
		jsonBody(t, map[string]string{"content": "hm"}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "provider_error")
}

func TestSarcasmEndpoint_UnknownSession(t *testing.T) {
	handler, _ := newTestServer(t, echoGenerate("hi"), structuredJSON(`{"quote":"x","score":1}`))

	req := httptest.NewRequest(http.MethodPost, "/chat/"+uuid.New().String()+"/sarcasm",
		jsonBody(t, map[string]string{"content": "x"}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSarcasmEndpoint_MissingContent(t *testing.T) {
	handler, store := newTestServer(t, echoGenerate("hi"), structuredJSON("{}"))

	id := createTestSession(t, store)
	req := httptest.NewRequest(http.MethodPost, "/chat/"+id.String()+"/sarcasm",
		jsonBody(t, map[string]string{}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "missing_content")
}

func TestJokeExplanationEndpoint(t *testing.T) {
	handler, store := newTestServer(t, echoGenerate("hi"), structuredJSON(`{
		"setup": "A horse walks into a bar.",
		"premise": "Horses have long faces.",
		"punchline": "Why the long face?",
		"joke_type": "bar joke",
		"funny_rating": 7
	}`))

	id := createTestSession(t, store)
	req := httptest.NewRequest(http.MethodPost, "/chat/"+id.String()+"/joke_explanation",
		jsonBody(t, map[string]string{"content": "why the long face?"}))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got skills.JokeExplanation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Horses have long faces.", got.Premise)
	assert.Equal(t, 7, got.FunnyRating)
}

func TestJokeDeliveryEndpoint(t *testing.T) {
	handler, store := newTestServer(t, echoGenerate("hi"), structuredJSON(`{
		"setup": "I told my accountant a joke about taxes.",
		"punchline": "It did not deduct well.",
		"joke_type": "pun",
		"funny_rating": 3
	}`))

	id := createTestSession(t, store)
	req := httptest.NewRequest(http.MethodGet, "/chat/"+id.String()+"/joke_delivery?topic=taxes", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got skills.JokeDelivery
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "It did not deduct well.", got.Punchline)

	// The topic shows up in the recorded user turn.
	history, err := store.History(id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Contains(t, history[0].Content, "taxes")
}

func TestSkillSchemasEndpoint(t *testing.T) {
	handler, _ := newTestServer(t, echoGenerate("hi"), structuredJSON("{}"))

	req := httptest.NewRequest(http.MethodGet, "/api/skills", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var schemas map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &schemas))
	assert.Len(t, schemas, 3)
	assert.Contains(t, schemas, skills.NameSarcasmDetection)
	assert.Contains(t, schemas, skills.NameJokeExplanation)
	assert.Contains(t, schemas, skills.NameJokeDelivery)
}
