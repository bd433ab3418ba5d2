// Package llmtest provides a scripted provider for tests.
package llmtest

import (
	"context"
	"io"
	"sync"

	"turion-be/pkg/llm"
)

// FakeProvider replays Chunks, then reports Usage. OpenErr fails the call
// itself; FailErr is returned after FailAfter chunks when set.
type FakeProvider struct {
	ProviderName string
	Chunks       []string
	Usage        llm.Usage
	OpenErr      error
	FailErr      error
	FailAfter    int

	mu       sync.Mutex
	calls    int
	received [][]llm.Message
}

var _ llm.LLMProvider = (*FakeProvider)(nil)

func (f *FakeProvider) Name() string {
	if f.ProviderName == "" {
		return "fake"
	}
	return f.ProviderName
}

func (f *FakeProvider) Stream(ctx context.Context, history []llm.Message, _ ...llm.Option) (llm.Stream, error) {
	f.mu.Lock()
	f.calls++
	f.received = append(f.received, append([]llm.Message(nil), history...))
	f.mu.Unlock()

	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return &fakeStream{ctx: ctx, p: f}, nil
}

func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastMessages returns the history of the most recent call.
func (f *FakeProvider) LastMessages() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.received) == 0 {
		return nil
	}
	return f.received[len(f.received)-1]
}

type fakeStream struct {
	ctx       context.Context
	p         *FakeProvider
	pos       int
	usageSent bool
}

func (s *fakeStream) Recv() (llm.Chunk, error) {
	if err := s.ctx.Err(); err != nil {
		return llm.Chunk{}, llm.NewTransportError(s.p.Name(), err)
	}
	if s.p.FailErr != nil && s.pos >= s.p.FailAfter {
		return llm.Chunk{}, s.p.FailErr
	}
	if s.pos < len(s.p.Chunks) {
		text := s.p.Chunks[s.pos]
		s.pos++
		return llm.Chunk{Text: text}, nil
	}
	if !s.usageSent {
		s.usageSent = true
		u := s.p.Usage
		return llm.Chunk{Usage: &u}, nil
	}
	return llm.Chunk{}, io.EOF
}

func (s *fakeStream) Close() error {
	return nil
}
