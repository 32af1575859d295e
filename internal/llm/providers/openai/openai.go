// internal/llm/providers/openai/openai.go
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/drawatale/drawatale-backend/internal/llm"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
)

// endpoint describes an OpenAI-compatible chat completions service.
type endpoint struct {
	name         string
	baseURL      string
	defaultModel string
	models       []string
}

var endpoints = []endpoint{
	{name: "openai", defaultModel: "gpt-3.5-turbo", models: []string{"gpt-3.5-turbo", "gpt-4o-mini", "gpt-4o"}},
	{name: "openrouter", baseURL: "https://openrouter.ai/api/v1", defaultModel: "google/gemma-3-27b-it:free", models: []string{"google/gemma-3-27b-it:free", "openai/gpt-4o-mini"}},
	{name: "grok", baseURL: "https://api.x.ai/v1", defaultModel: "grok-3-mini", models: []string{"grok-3-mini", "grok-3"}},
	{name: "qwen", baseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", defaultModel: "qwen-plus", models: []string{"qwen-plus", "qwen-max"}},
	{name: "glm", baseURL: "https://open.bigmodel.cn/api/paas/v4", defaultModel: "glm-4-flash", models: []string{"glm-4-flash", "glm-4"}},
	{name: "githubmodels", baseURL: "https://models.inference.ai.azure.com", defaultModel: "gpt-4o-mini", models: []string{"gpt-4o-mini", "gpt-4o"}},
}

func init() {
	for _, ep := range endpoints {
		ep := ep
		llm.Register(ep.name, func() llm.Provider { return &Provider{endpoint: ep} })
	}
}

// Provider calls a chat completions endpoint through the official SDK.
type Provider struct {
	endpoint
	client           openai.Client
	model            string
	structuredOutput bool
}

// Initialize accepts api_key, default_model, base_url and
// structured_output ("true" sends the JSON schema as response_format;
// otherwise JSON object mode is used, which older models support).
func (p *Provider) Initialize(config map[string]string) error {
	apiKey := config["api_key"]
	if apiKey == "" {
		return fmt.Errorf("%s api key not provided", p.name)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	baseURL := p.baseURL
	if v := config["base_url"]; v != "" {
		baseURL = v
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	p.client = openai.NewClient(opts...)

	p.model = p.defaultModel
	if v := config["default_model"]; v != "" {
		p.model = v
	}
	p.structuredOutput = config["structured_output"] == "true"
	return nil
}

func (p *Provider) GetName() string {
	return p.name
}

func (p *Provider) GetSupportedModels() []string {
	return p.models
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.Opt[string]{Value: req.SystemPrompt},
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: param.Opt[string]{Value: req.Prompt},
			},
		},
	})

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	switch {
	case p.structuredOutput && req.Schema != nil:
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
				},
			},
		}
	case req.JSONMode || req.Schema != nil:
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s completion error: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned")
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return nil, errors.New("empty completion content")
	}

	return &llm.CompletionResponse{
		Text:         text,
		FinishReason: string(resp.Choices[0].FinishReason),
		TokensUsed:   int(resp.Usage.TotalTokens),
		PromptTokens: int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		ModelName:    resp.Model,
		ProviderName: p.name,
	}, nil
}
