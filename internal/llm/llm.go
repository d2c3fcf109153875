package llm

import (
	"context"
	"fmt"
	"strings"
)

// Request is one generation call. Temperature defaults to the client's
// configured value when zero; values above 0.3 weaken the numeric-fidelity
// guarantee and are the caller's choice.
type Request struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Response carries the raw model text and the model that actually produced
// it, which differs from the primary when the fallback served the call.
type Response struct {
	Text  string
	Model string
}

// Client is the uniform generation interface the orchestrator consumes.
// Implementations retry transient failures and substitute the fallback model
// before surfacing an error; a call is never silently dropped.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Provider identifies a generation backend. The set is closed; provider
// selection is by model-identifier prefix.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGoogle Provider = "google"
)

// ProviderFor resolves a model identifier to its provider by prefix
// convention: one prefix family per provider.
func ProviderFor(model string) (Provider, error) {
	switch {
	case strings.HasPrefix(model, "gpt-"):
		return ProviderOpenAI, nil
	case strings.HasPrefix(model, "gemini-"):
		return ProviderGoogle, nil
	default:
		return "", fmt.Errorf("cannot determine provider for model %q", model)
	}
}

// ProviderError reports an exhausted call: all retries against a model (and,
// when surfaced from Complete, the fallback too) failed.
type ProviderError struct {
	Provider  Provider
	Model     string
	Attempts  int
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("model %s (%s) failed after %d attempt(s): %v", e.Model, e.Provider, e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// backend is a raw provider call without retry or fallback semantics.
type backend interface {
	Generate(ctx context.Context, model string, req Request) (string, error)
}
