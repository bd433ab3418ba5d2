package llm

import (
	"context"
	"errors"
	"io"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// ApplyOptions resolves opts over the defaults every provider shares.
func ApplyOptions(opts ...Option) *Options {
	options := &Options{
		Temperature: 0.7,
		MaxTokens:   3000,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Usage is the token count a provider reports for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Merge keeps the latest non-zero count for each side.
func (u Usage) Merge(other Usage) Usage {
	if other.InputTokens > 0 {
		u.InputTokens = other.InputTokens
	}
	if other.OutputTokens > 0 {
		u.OutputTokens = other.OutputTokens
	}
	return u
}

// Chunk is one increment of a streamed completion. Usage is set on chunks
// that carry token accounting, which may have empty Text.
type Chunk struct {
	Text  string
	Usage *Usage
}

// Stream yields chunks until Recv returns io.EOF.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// LLMProvider defines the contract for any streaming LLM backend
type LLMProvider interface {
	Name() string
	Stream(ctx context.Context, history []Message, options ...Option) (Stream, error)
}

// Completion is a fully collected response.
type Completion struct {
	Content string
	Usage   Usage
}

// Chat sends a chat history to the model and collects the whole response.
func Chat(ctx context.Context, p LLMProvider, history []Message, options ...Option) (*Completion, error) {
	stream, err := p.Stream(ctx, history, options...)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var sb strings.Builder
	var usage Usage
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		sb.WriteString(chunk.Text)
		if chunk.Usage != nil {
			usage = usage.Merge(*chunk.Usage)
		}
	}

	return &Completion{Content: sb.String(), Usage: usage}, nil
}

// Generate sends a single prompt to the model (convenience method)
func Generate(ctx context.Context, p LLMProvider, prompt string, options ...Option) (*Completion, error) {
	return Chat(ctx, p, []Message{{Role: RoleUser, Content: prompt}}, options...)
}

// SplitSystem separates system messages from the conversation, for backends
// that take the system prompt as a separate field.
func SplitSystem(history []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
