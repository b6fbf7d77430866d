package crew

import (
	"context"
	"errors"
	"fmt"
)

// LLMClient is a chat model; implementations are swappable for tests.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings holds the provider configuration shared by every session. The
// credential is not part of it; each session supplies its own.
type LLMSettings struct {
	Provider  string
	Model     string
	BaseURL   string
	MaxTokens int64
}

// ClientFactory turns a session credential into a ready client.
type ClientFactory func(apiKey string) (LLMClient, error)

// NewClientFactory validates settings once and returns a factory for the
// configured provider.
func NewClientFactory(cfg LLMSettings) (ClientFactory, error) {
	switch cfg.Provider {
	case "", "openai":
		if cfg.Model == "" {
			return nil, errors.New("llm model is required")
		}
		return func(apiKey string) (LLMClient, error) {
			return NewOpenAILLM(cfg, apiKey)
		}, nil
	case "deepseek":
		// DeepSeek speaks the OpenAI protocol but has no default endpoint.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		if cfg.Model == "" {
			return nil, errors.New("llm model is required")
		}
		return func(apiKey string) (LLMClient, error) {
			return NewOpenAILLM(cfg, apiKey)
		}, nil
	case "anthropic":
		if cfg.Model == "" {
			return nil, errors.New("llm model is required")
		}
		return func(apiKey string) (LLMClient, error) {
			return NewAnthropicLLM(cfg, apiKey)
		}, nil
	case "mock":
		return func(string) (LLMClient, error) {
			return MockLLM{}, nil
		}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
