// internal/services/llm_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/drawatale/drawatale-backend/internal/llm"
	"github.com/drawatale/drawatale-backend/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	model string
}

func (p *stubProvider) Initialize(cfg map[string]string) error {
	if cfg["api_key"] == "" {
		return errors.New("api key not provided")
	}
	p.model = cfg["default_model"]
	return nil
}

func (p *stubProvider) GetName() string              { return "stub" }
func (p *stubProvider) GetSupportedModels() []string { return []string{"stub-small"} }

func (p *stubProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Text: "model=" + req.Model, TokensUsed: 12}, nil
}

func init() {
	llm.Register("stub", func() llm.Provider { return &stubProvider{} })
}

func TestLLMServiceStandbyWithoutKey(t *testing.T) {
	rc, err := config.InitConfig(t.TempDir(), &config.Config{})
	require.NoError(t, err)

	s := NewLLMService(rc, nil)
	assert.False(t, s.IsReady())
	assert.Equal(t, "API key not configured", s.GetReadyState())

	_, err = s.Complete(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrLLMNotReady)

	status := s.Status()
	assert.False(t, status.Ready)
	assert.Empty(t, status.Provider)
}

func TestLLMServiceUpdateProvider(t *testing.T) {
	dir := t.TempDir()
	rc, err := config.InitConfig(dir, &config.Config{})
	require.NoError(t, err)
	metrics := utils.NewAppMetrics(utils.NewMetricsCollector())

	s := NewLLMService(rc, metrics)
	require.NoError(t, s.UpdateProvider("stub", map[string]string{"api_key": "k", "default_model": "stub-large"}))
	assert.True(t, s.IsReady())

	resp, err := s.Complete(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "model=stub-large", resp.Text)
	assert.Equal(t, "stub", resp.ProviderName)
	assert.Equal(t, int64(1), metrics.Collector().GetCounterValue("llm.requests.stub"))
	assert.Equal(t, int64(12), metrics.Collector().GetCounterValue("llm.tokens.stub"))

	// An empty key keeps the saved one for the same provider.
	require.NoError(t, s.UpdateProvider("stub", map[string]string{"default_model": "stub-small"}))
	assert.Equal(t, "stub-small", s.Status().Model)

	reloaded, err := config.InitConfig(dir, &config.Config{})
	require.NoError(t, err)
	again := NewLLMService(reloaded, nil)
	assert.True(t, again.IsReady())
	assert.Equal(t, "stub", again.GetProviderName())
}

func TestLLMServiceUpdateProviderFailureKeepsCurrent(t *testing.T) {
	rc, err := config.InitConfig(t.TempDir(), &config.Config{})
	require.NoError(t, err)
	s := NewLLMService(rc, nil)
	require.NoError(t, s.UpdateProvider("stub", map[string]string{"api_key": "k"}))

	err = s.UpdateProvider("does-not-exist", map[string]string{"api_key": "k"})
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
	assert.True(t, s.IsReady())
	assert.Equal(t, "stub", s.GetProviderName())
	assert.Equal(t, "Ready", s.GetReadyState())
	status := s.Status()
	assert.True(t, status.Ready)
	assert.Equal(t, "Ready", status.State)
	assert.Equal(t, "stub", status.Provider)
}

func TestLLMServiceUpdateProviderFailureWhenUnconfigured(t *testing.T) {
	s := NewLLMService(nil, nil)

	err := s.UpdateProvider("does-not-exist", map[string]string{"api_key": "k"})
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
	assert.False(t, s.IsReady())
	assert.Contains(t, s.GetReadyState(), "Configuration failed")
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":          `{"a":1}`,
		"Sure!\n```\n[1,2]\n```\nEnjoy":    `[1,2]`,
		"Sure! {\"a\":{\"b\":2}} trailing": `Sure! {"a":{"b":2}} trailing`,
		"\ufeff  {\"a\":\"x\u200by\"}  ":   `{"a":"xy"}`,
		"no json at all":                   "no json at all",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripCodeFences(in), in)
	}
}
