package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"turion-be/pkg/llm"
)

const providerName = "gemini"

type GeminiProvider struct {
	client    *genai.Client
	ModelName string
}

var _ llm.LLMProvider = &GeminiProvider{}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, ModelName: modelName}, nil
}

func (g *GeminiProvider) Name() string {
	return providerName
}

func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

func (g *GeminiProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	options := llm.ApplyOptions(opts...)

	name := g.ModelName
	if options.Model != "" {
		name = options.Model
	}

	system, rest := llm.SplitSystem(history)
	if len(rest) == 0 {
		return nil, &llm.ProviderError{Provider: providerName, Kind: llm.KindRequest, Err: errors.New("no user message")}
	}

	model := g.client.GenerativeModel(name)
	model.SetMaxOutputTokens(int32(options.MaxTokens))
	model.SetTemperature(float32(options.Temperature))
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := model.StartChat()
	for _, m := range rest[:len(rest)-1] {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	last := rest[len(rest)-1]
	return &stream{iter: cs.SendMessageStream(ctx, genai.Text(last.Content))}, nil
}

type stream struct {
	iter *genai.GenerateContentResponseIterator
}

func (s *stream) Recv() (llm.Chunk, error) {
	resp, err := s.iter.Next()
	if errors.Is(err, iterator.Done) {
		return llm.Chunk{}, io.EOF
	}
	if err != nil {
		return llm.Chunk{}, classify(err)
	}

	var chunk llm.Chunk
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				chunk.Text += string(text)
			}
		}
		break
	}
	if resp.UsageMetadata != nil {
		chunk.Usage = &llm.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return chunk, nil
}

func (s *stream) Close() error {
	return nil
}

func classify(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return llm.NewStatusError(providerName, gErr.Code, err)
	}
	return llm.NewTransportError(providerName, err)
}
