package factory

import (
	"context"
	"fmt"
	"strings"

	"turion-be/pkg/llm"
	"turion-be/pkg/llm/anthropic"
	"turion-be/pkg/llm/gemini"
	"turion-be/pkg/llm/ollama"
	"turion-be/pkg/llm/openai"
)

const (
	huggingFaceBaseURL = "https://router.huggingface.co/v1"
	xaiBaseURL         = "https://api.x.ai/v1"
)

// Settings carries every provider credential the factory may need.
type Settings struct {
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	AnthropicKey   string
	AnthropicModel string

	GeminiKey   string
	GeminiModel string

	XAIKey   string
	XAIModel string

	HuggingFaceKey   string
	HuggingFaceModel string

	OllamaBaseURL string
	OllamaModel   string
}

// NewLLMProvider builds the named provider. A provider whose credential is
// missing yields llm.ErrProviderUnavailable so callers can degrade instead of
// failing at the first request.
func NewLLMProvider(ctx context.Context, providerType string, s Settings) (llm.LLMProvider, error) {
	switch strings.ToLower(strings.TrimSpace(providerType)) {
	case "openai":
		if s.OpenAIKey == "" {
			return nil, fmt.Errorf("openai: %w", llm.ErrProviderUnavailable)
		}
		return openai.NewOpenAIProvider(s.OpenAIKey, s.OpenAIModel, s.OpenAIBaseURL), nil
	case "xai", "grok":
		if s.XAIKey == "" {
			return nil, fmt.Errorf("xai: %w", llm.ErrProviderUnavailable)
		}
		return openai.NewOpenAIProvider(s.XAIKey, s.XAIModel, xaiBaseURL), nil
	case "huggingface":
		if s.HuggingFaceKey == "" {
			return nil, fmt.Errorf("huggingface: %w", llm.ErrProviderUnavailable)
		}
		return openai.NewOpenAIProvider(s.HuggingFaceKey, s.HuggingFaceModel, huggingFaceBaseURL), nil
	case "anthropic":
		if s.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic: %w", llm.ErrProviderUnavailable)
		}
		return anthropic.NewAnthropicProvider(s.AnthropicKey, s.AnthropicModel, ""), nil
	case "gemini":
		if s.GeminiKey == "" {
			return nil, fmt.Errorf("gemini: %w", llm.ErrProviderUnavailable)
		}
		return gemini.NewGeminiProvider(ctx, s.GeminiKey, s.GeminiModel)
	case "ollama":
		baseURL := s.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, s.OllamaModel), nil
	case "", "none":
		return nil, llm.ErrProviderUnavailable
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
