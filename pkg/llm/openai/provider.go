package openai

import (
	"context"
	"errors"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"turion-be/pkg/llm"
)

const providerName = "openai"

// OpenAIProvider talks to OpenAI or any API compatible with its chat
// completions endpoint (set BaseURL for those).
type OpenAIProvider struct {
	client    *goopenai.Client
	ModelName string
}

var _ llm.LLMProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, modelName, baseURL string) *OpenAIProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:    goopenai.NewClientWithConfig(cfg),
		ModelName: modelName,
	}
}

func (p *OpenAIProvider) Name() string {
	return providerName
}

func (p *OpenAIProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	options := llm.ApplyOptions(opts...)

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}

	msgs := make([]goopenai.ChatCompletionMessage, len(history))
	for i, m := range history {
		msgs[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	s, err := p.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
		Model:         model,
		Messages:      msgs,
		MaxTokens:     options.MaxTokens,
		Temperature:   float32(options.Temperature),
		Stream:        true,
		StreamOptions: &goopenai.StreamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, classify(err)
	}

	return &stream{inner: s}, nil
}

type stream struct {
	inner *goopenai.ChatCompletionStream
}

func (s *stream) Recv() (llm.Chunk, error) {
	resp, err := s.inner.Recv()
	if errors.Is(err, io.EOF) {
		return llm.Chunk{}, io.EOF
	}
	if err != nil {
		return llm.Chunk{}, classify(err)
	}

	var chunk llm.Chunk
	if len(resp.Choices) > 0 {
		chunk.Text = resp.Choices[0].Delta.Content
	}
	if resp.Usage != nil {
		chunk.Usage = &llm.Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	}
	return chunk, nil
}

func (s *stream) Close() error {
	return s.inner.Close()
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return llm.NewStatusError(providerName, apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return llm.NewStatusError(providerName, reqErr.HTTPStatusCode, err)
	}
	return llm.NewTransportError(providerName, err)
}
