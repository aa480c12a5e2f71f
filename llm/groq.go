package llm

import "context"

// groqProvider implements Provider for Groq's inference API.
// Groq speaks the OpenAI chat-completions format and serves the default
// models for both extraction and answering.
//
// API key: set via config, GROQ_API_KEY or DOCGRAPH_*_API_KEY env vars.
type groqProvider struct {
	base openAICompatClient
}

// NewGroq creates a provider for Groq.
func NewGroq(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.3-70b-versatile"
	}
	return &groqProvider{base: newOpenAICompatClient(cfg)}
}

func (p *groqProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}
