package llm

import (
	"context"
	"fmt"

	"github.com/revrost/go-openrouter"
)

// openRouterProvider implements Provider for OpenRouter using the
// go-openrouter client. Model names carry the upstream vendor prefix,
// e.g. "qwen/qwen3-32b".
type openRouterProvider struct {
	client *openrouter.Client
	model  string
}

// NewOpenRouter creates a provider for OpenRouter.
func NewOpenRouter(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "qwen/qwen3-32b"
	}
	return &openRouterProvider{
		client: openrouter.NewClient(cfg.APIKey),
		model:  model,
	}, nil
}

func (p *openRouterProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openrouter.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openrouter.ChatCompletionMessage{
			Role:    m.Role,
			Content: openrouter.Content{Text: m.Content},
		}
	}

	request := openrouter.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseFormat == "json_object" {
		request.ResponseFormat = &openrouter.ChatCompletionResponseFormat{
			Type: openrouter.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("openrouter chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &ChatResponse{
		Content:      resp.Choices[0].Message.Content.Text,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}
