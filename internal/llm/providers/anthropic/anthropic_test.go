// internal/llm/providers/anthropic/anthropic_test.go
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drawatale/drawatale-backend/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("Anthropic-Version"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, defaultModel, body["model"])
		assert.EqualValues(t, 1000, body["max_tokens"])

		system, ok := body["system"].([]interface{})
		require.True(t, ok)
		require.Len(t, system, 1)
		assert.Equal(t, "be kind", system[0].(map[string]interface{})["text"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant",
			"model":"claude-3-haiku-20240307","stop_reason":"end_turn",
			"content":[{"type":"text","text":"{\"title\":\"T\"}"}],
			"usage":{"input_tokens":12,"output_tokens":8}}`))
	}))
	defer srv.Close()

	p, err := llm.GetProvider("anthropic", map[string]string{"api_key": "sk-ant", "base_url": srv.URL})
	require.NoError(t, err)

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "story", SystemPrompt: "be kind", Temperature: 0.8})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"T"}`, resp.Text)
	assert.Equal(t, 20, resp.TokensUsed)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, "anthropic", resp.ProviderName)
}

func TestCompleteTextAPIError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	p, err := llm.GetProvider("anthropic", map[string]string{"api_key": "k", "base_url": srv.URL})
	require.NoError(t, err)

	_, err = p.CompleteText(context.Background(), llm.CompletionRequest{Prompt: "x"})
	assert.ErrorContains(t, err, "429")
	assert.Equal(t, 1, calls)
}

func TestInitializeRequiresKey(t *testing.T) {
	_, err := llm.GetProvider("anthropic", map[string]string{})
	assert.Error(t, err)
}
