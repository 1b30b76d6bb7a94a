// Package provider implements the AI provider adapters.
//
// This package contains:
//   - Adapter interface: core abstraction for one analysis provider
//   - OpenAIProvider, AnthropicProvider: hosted chat APIs
//   - LocalProvider: OpenAI-compatible local inference gateway
//   - HealthProbe: gRPC health checking for the local gateway
//
// Adapters translate provider-specific responses and errors into the
// canonical request/response shape; resilience (retry, breaker, fallback)
// lives in the orchestrator, not here.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorKind classifies a failed provider call.
type ErrorKind string

const (
	KindTimeout            ErrorKind = "timeout"
	KindRateLimited        ErrorKind = "rate_limited"
	KindTransport          ErrorKind = "transport_error"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
)

// CallError wraps a provider failure with its classification.
type CallError struct {
	Provider string
	Kind     ErrorKind
	// RetryAfter carries a server-advertised delay, when one was given
	// (Retry-After header or gRPC RetryInfo detail). Zero if none.
	RetryAfter time.Duration
	Err        error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of a provider call error, defaulting
// to transport_error for anything unclassified.
func KindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindTransport
}

// Retryable reports whether a failed call is worth retrying against the
// same provider. Credential errors never are; the provider will keep
// rejecting until reconfigured.
func Retryable(err error) bool {
	return KindOf(err) != KindInvalidCredentials
}

// RetryAfter returns the server-advertised retry delay, if any.
func RetryAfter(err error) time.Duration {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.RetryAfter
	}
	return 0
}

// Request is the canonical provider call shape.
type Request struct {
	Text        string
	MaxTokens   int
	Temperature float64
}

// Adapter is the contract every analysis provider implements.
type Adapter interface {
	// Name returns the provider identifier (e.g. "openai", "local")
	Name() string

	// Analyze sends the analysis prompt and returns raw textual output.
	// Errors are classified CallErrors.
	Analyze(ctx context.Context, req Request) (string, error)
}
