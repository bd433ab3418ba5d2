package anthropic

import (
	"context"
	"errors"
	"io"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"turion-be/pkg/llm"
)

const providerName = "anthropic"

// AnthropicProvider streams from the Messages API.
type AnthropicProvider struct {
	client    sdk.Client
	ModelName string
}

var _ llm.LLMProvider = &AnthropicProvider{}

func NewAnthropicProvider(apiKey, modelName, baseURL string) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// failover is decided by the caller
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client:    sdk.NewClient(opts...),
		ModelName: modelName,
	}
}

func (a *AnthropicProvider) Name() string {
	return providerName
}

func (a *AnthropicProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	options := llm.ApplyOptions(opts...)

	model := a.ModelName
	if options.Model != "" {
		model = options.Model
	}

	system, rest := llm.SplitSystem(history)
	msgs := make([]sdk.MessageParam, 0, len(rest))
	for _, m := range rest {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			msgs = append(msgs, sdk.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, sdk.NewUserMessage(block))
		}
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(model),
		MaxTokens:   int64(options.MaxTokens),
		Messages:    msgs,
		Temperature: sdk.Float(options.Temperature),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	// The request is sent lazily; connection and status failures surface on
	// the first Recv, before any text.
	return &stream{inner: a.client.Messages.NewStreaming(ctx, params)}, nil
}

type stream struct {
	inner *ssestream.Stream[sdk.MessageStreamEventUnion]
	usage llm.Usage
}

func (s *stream) Recv() (llm.Chunk, error) {
	for s.inner.Next() {
		switch ev := s.inner.Current().AsAny().(type) {
		case sdk.MessageStartEvent:
			return s.account(llm.Usage{
				InputTokens:  int(ev.Message.Usage.InputTokens),
				OutputTokens: int(ev.Message.Usage.OutputTokens),
			}), nil
		case sdk.ContentBlockDeltaEvent:
			if d, ok := ev.Delta.AsAny().(sdk.TextDelta); ok && d.Text != "" {
				return llm.Chunk{Text: d.Text}, nil
			}
		case sdk.MessageDeltaEvent:
			return s.account(llm.Usage{OutputTokens: int(ev.Usage.OutputTokens)}), nil
		case sdk.MessageStopEvent:
			return llm.Chunk{}, io.EOF
		}
	}
	if err := s.inner.Err(); err != nil {
		return llm.Chunk{}, classify(err)
	}
	return llm.Chunk{}, llm.NewTransportError(providerName, io.ErrUnexpectedEOF)
}

func (s *stream) account(u llm.Usage) llm.Chunk {
	s.usage = s.usage.Merge(u)
	merged := s.usage
	return llm.Chunk{Usage: &merged}
}

func (s *stream) Close() error {
	return s.inner.Close()
}

// classify maps SDK errors onto provider error kinds. In-stream error events
// (overloaded_error, api_error) carry no status and count as transport.
func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return llm.NewStatusError(providerName, apiErr.StatusCode, err)
	}
	return llm.NewTransportError(providerName, err)
}
