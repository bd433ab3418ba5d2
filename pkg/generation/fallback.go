package generation

import (
	"context"
	"errors"
	"io"

	"turion-be/pkg/llm"
)

// Reason explains why an attempt ended.
type Reason string

const (
	ReasonOK         Reason = "ok"
	ReasonTransport  Reason = "transport"
	ReasonRequest    Reason = "request"
	ReasonCredential Reason = "credential"
	ReasonCanceled   Reason = "canceled"
	// ReasonMidStream is a failure after text was already delivered. The
	// stream cannot be restarted, so it is terminal whatever its kind.
	ReasonMidStream Reason = "mid_stream"
)

type Attempt struct {
	Provider string
	Reason   Reason
	Err      error
}

// Result is the outcome of a Fallback run.
type Result struct {
	Provider string
	Content  string
	Usage    llm.Usage
	Attempts []Attempt
}

// Fallback runs a completion against a primary provider and, only when the
// primary fails at the transport level before emitting anything, once
// against a secondary.
type Fallback struct {
	primary   llm.LLMProvider
	secondary llm.LLMProvider
}

// NewFallback accepts nil for a provider without credentials.
func NewFallback(primary, secondary llm.LLMProvider) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

// Available reports whether at least one provider can be called.
func (f *Fallback) Available() bool {
	return f.primary != nil || f.secondary != nil
}

// Summarizer returns the provider used for background calls.
func (f *Fallback) Summarizer() llm.LLMProvider {
	if f.primary != nil {
		return f.primary
	}
	return f.secondary
}

type fallbackState int

const (
	statePrimary fallbackState = iota
	stateSecondary
	stateDone
)

// Run streams the completion, calling emit for every text fragment in order.
// Result always carries whatever content and usage were gathered, also when
// an error is returned.
func (f *Fallback) Run(ctx context.Context, messages []llm.Message, emit func(string), opts ...llm.Option) (*Result, error) {
	if !f.Available() {
		return &Result{}, llm.ErrProviderUnavailable
	}

	res := &Result{}
	state := statePrimary
	if f.primary == nil {
		state = stateSecondary
	}

	var lastErr error
	for state != stateDone {
		provider := f.primary
		if state == stateSecondary {
			provider = f.secondary
		}

		attempt, content, usage, emitted := f.attempt(ctx, provider, messages, emit, opts...)
		res.Attempts = append(res.Attempts, attempt)
		res.Provider = attempt.Provider
		res.Content = content
		res.Usage = usage
		lastErr = attempt.Err

		switch {
		case attempt.Reason == ReasonOK:
			state = stateDone
		case state == statePrimary && attempt.Reason == ReasonTransport && !emitted && f.secondary != nil:
			state = stateSecondary
		default:
			state = stateDone
		}
	}

	return res, lastErr
}

func (f *Fallback) attempt(ctx context.Context, p llm.LLMProvider, messages []llm.Message, emit func(string), opts ...llm.Option) (Attempt, string, llm.Usage, bool) {
	a := Attempt{Provider: p.Name()}

	var usage llm.Usage
	var content []byte
	emitted := false

	stream, err := p.Stream(ctx, messages, opts...)
	if err != nil {
		a.Err = err
		a.Reason = reasonFor(err)
		return a, "", usage, false
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			a.Reason = ReasonOK
			return a, string(content), usage, emitted
		}
		if err != nil {
			a.Err = err
			a.Reason = reasonFor(err)
			if emitted {
				a.Reason = ReasonMidStream
			}
			return a, string(content), usage, emitted
		}
		if chunk.Usage != nil {
			usage = usage.Merge(*chunk.Usage)
		}
		if chunk.Text != "" {
			emitted = true
			content = append(content, chunk.Text...)
			emit(chunk.Text)
		}
	}
}

func reasonFor(err error) Reason {
	switch llm.KindOf(err) {
	case llm.KindTransport:
		return ReasonTransport
	case llm.KindCredential:
		return ReasonCredential
	case llm.KindCanceled:
		return ReasonCanceled
	default:
		return ReasonRequest
	}
}
