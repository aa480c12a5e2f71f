package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// ModelConfig binds a provider to one model and its sampling settings.
type ModelConfig struct {
	Name        string
	Temperature float64
	MaxTokens   int
	// ResponseFormat is passed through to the provider ("json_object" or "").
	ResponseFormat string
	// RequestsPerSecond throttles calls to the backend. Zero disables
	// throttling.
	RequestsPerSecond float64
	Burst             int
}

// Model is a single-prompt completion endpoint: one user message in, the
// generated text out. It is safe for concurrent use.
type Model struct {
	provider Provider
	cfg      ModelConfig
	limiter  *rate.Limiter
}

// NewModel wraps provider with the given model settings.
func NewModel(provider Provider, cfg ModelConfig) *Model {
	m := &Model{provider: provider, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return m
}

// Name returns the configured model name.
func (m *Model) Name() string { return m.cfg.Name }

// Complete sends prompt as a single user message and returns the raw
// response text.
func (m *Model) Complete(ctx context.Context, prompt string) (string, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	start := time.Now()
	resp, err := m.provider.Chat(ctx, ChatRequest{
		Model:          m.cfg.Name,
		Messages:       []Message{{Role: "user", Content: prompt}},
		Temperature:    m.cfg.Temperature,
		MaxTokens:      m.cfg.MaxTokens,
		ResponseFormat: m.cfg.ResponseFormat,
	})
	if err != nil {
		return "", err
	}

	slog.Debug("llm: completion",
		"model", m.cfg.Name,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"finish_reason", resp.FinishReason,
		"elapsed", time.Since(start),
	)
	return resp.Content, nil
}
