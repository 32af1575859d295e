// internal/llm/providers/anthropic/anthropic.go
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/drawatale/drawatale-backend/internal/llm"
)

const defaultModel = "claude-3-haiku-20240307"

func init() {
	llm.Register("anthropic", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"claude-3-haiku-20240307",
				"claude-3-5-haiku-latest",
				"claude-3-5-sonnet-latest",
			},
		}
	})
}

// Provider talks to the Anthropic Messages API.
type Provider struct {
	client            sdk.Client
	defaultModel      string
	recommendedModels []string
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := config["api_key"]
	if apiKey == "" {
		return errors.New("anthropic api key not provided")
	}

	// Retries are left to the caller's timeout and fallback path.
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := config["base_url"]; baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiVersion := config["api_version"]; apiVersion != "" {
		opts = append(opts, option.WithHeader("anthropic-version", apiVersion))
	}
	p.client = sdk.NewClient(opts...)

	p.defaultModel = defaultModel
	if model := config["default_model"]; model != "" {
		p.defaultModel = model
	}
	return nil
}

func (p *Provider) GetName() string {
	return "anthropic"
}

func (p *Provider) GetSupportedModels() []string {
	return p.recommendedModels
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic completion error: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, errors.New("anthropic returned no text content")
	}

	return &llm.CompletionResponse{
		Text:         text,
		FinishReason: string(msg.StopReason),
		TokensUsed:   int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		PromptTokens: int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		ModelName:    string(msg.Model),
		ProviderName: p.GetName(),
	}, nil
}
