// internal/llm/interface_test.go
package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoProvider struct{ key string }

func (p *echoProvider) Initialize(config map[string]string) error {
	if config["api_key"] == "" {
		return errors.New("api key required")
	}
	p.key = config["api_key"]
	return nil
}
func (p *echoProvider) GetName() string              { return "echo" }
func (p *echoProvider) GetSupportedModels() []string { return []string{"echo-1"} }
func (p *echoProvider) CompleteText(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Text: req.Prompt}, nil
}

func TestRegistry(t *testing.T) {
	Register("echo-test", func() Provider { return &echoProvider{} })

	p, err := GetProvider("echo-test", map[string]string{"api_key": "k"})
	require.NoError(t, err)
	resp, err := p.CompleteText(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)

	_, err = GetProvider("echo-test", map[string]string{})
	assert.Error(t, err)

	_, err = GetProvider("nope", nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	assert.Contains(t, ListProviders(), "echo-test")
	assert.Equal(t, []string{"echo-1"}, GetSupportedModelsForProvider("echo-test"))
	assert.Empty(t, GetSupportedModelsForProvider("nope"))
}
