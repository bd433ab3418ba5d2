package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrProviderUnavailable means no provider has a usable credential.
var ErrProviderUnavailable = errors.New("no generation provider available")

type ErrorKind int

const (
	// KindTransport covers network failures, rate limiting and 5xx answers.
	KindTransport ErrorKind = iota
	// KindRequest is a rejected request (bad model, malformed payload).
	KindRequest
	// KindCredential is a missing or rejected API key.
	KindCredential
	// KindCanceled means the caller's context ended.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRequest:
		return "request"
	case KindCredential:
		return "credential"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindForStatus maps an HTTP status from a provider API to an error kind.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindCredential
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
		return KindTransport
	default:
		return KindRequest
	}
}

// NewStatusError builds a ProviderError from an HTTP status.
func NewStatusError(provider string, code int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindForStatus(code), StatusCode: code, Err: err}
}

// NewTransportError wraps a failure that happened before or while talking to
// the provider. Context cancellation is reported as KindCanceled.
func NewTransportError(provider string, err error) *ProviderError {
	kind := KindTransport
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCanceled
	}
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// KindOf returns the kind of err. Errors that are not ProviderErrors count as
// request errors so they are never retried elsewhere by accident.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindRequest
}
