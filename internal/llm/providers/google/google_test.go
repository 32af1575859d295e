// internal/llm/providers/google/google_test.go
package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drawatale/drawatale-backend/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeRequiresKey(t *testing.T) {
	_, err := llm.GetProvider("google", map[string]string{})
	assert.Error(t, err)
}

func TestCompleteText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "gemini-2.0-flash:generateContent"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		genCfg, _ := body["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", genCfg["responseMimeType"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
		  "candidates": [{"content": {"role": "model", "parts": [{"text": "{\"title\":\"Stars\"}"}]}, "finishReason": "STOP"}],
		  "usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 4, "totalTokenCount": 9}
		}`))
	}))
	defer srv.Close()

	p, err := llm.GetProvider("google", map[string]string{"api_key": "g-key", "base_url": srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "google", p.GetName())

	resp, err := p.CompleteText(context.Background(), llm.CompletionRequest{
		Prompt:       "stars",
		SystemPrompt: "write stories",
		JSONMode:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Stars"}`, resp.Text)
	assert.Equal(t, 9, resp.TokensUsed)
	assert.Equal(t, "STOP", resp.FinishReason)
}
