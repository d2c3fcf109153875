package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"paper-summarizer/internal/retry"
)

// Config controls retry, fallback and rate behaviour for the client.
type Config struct {
	PrimaryModel  string
	FallbackModel string

	// Temperature is the per-call default when the request leaves it zero.
	// Values at or below 0.3 are required for the numeric-fidelity
	// guarantee to hold.
	Temperature float64
	MaxTokens   int

	MaxRetries     int
	RetryBaseDelay time.Duration
	CallTimeout    time.Duration

	// CallSpacing is the minimum interval between call starts; MaxInFlight
	// bounds concurrent calls across all workers.
	CallSpacing time.Duration
	MaxInFlight int

	OpenAIKey string
	GeminiKey string
}

// RetryClient implements Client with exponential-backoff retries on
// transient failures and a single fallback-model pass when the primary
// model exhausts its retries.
//
// The in-flight semaphore and the next-start timestamp are the only
// process-wide mutable state in the pipeline; both are synchronized here.
type RetryClient struct {
	cfg      Config
	log      *slog.Logger
	backends map[Provider]backend

	sem       chan struct{}
	mu        sync.Mutex
	nextStart time.Time
}

// New builds a client with backends for every provider that has
// credentials. The primary model's provider must be usable; a fallback
// model whose provider has no credentials is rejected rather than silently
// skipped.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*RetryClient, error) {
	backends := make(map[Provider]backend)
	if cfg.OpenAIKey != "" {
		b, err := newOpenAIBackend(cfg.OpenAIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI backend: %w", err)
		}
		backends[ProviderOpenAI] = b
	}
	if cfg.GeminiKey != "" {
		b, err := newGoogleBackend(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini backend: %w", err)
		}
		backends[ProviderGoogle] = b
	}

	for _, model := range []string{cfg.PrimaryModel, cfg.FallbackModel} {
		if model == "" {
			continue
		}
		provider, err := ProviderFor(model)
		if err != nil {
			return nil, err
		}
		if _, ok := backends[provider]; !ok {
			return nil, fmt.Errorf("model %s requires %s credentials", model, provider)
		}
	}
	return newClient(cfg, log, backends), nil
}

func newClient(cfg Config, log *slog.Logger, backends map[Provider]backend) *RetryClient {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	return &RetryClient{
		cfg:      cfg,
		log:      log,
		backends: backends,
		sem:      make(chan struct{}, cfg.MaxInFlight),
	}
}

// Complete calls the primary model and, when it exhausts its retries,
// re-issues the same call once against the fallback model. Exhaustion of
// both surfaces a ProviderError; nothing is silently dropped.
func (c *RetryClient) Complete(ctx context.Context, req Request) (Response, error) {
	if req.Temperature == 0 {
		req.Temperature = c.cfg.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}

	text, err := c.callModel(ctx, c.cfg.PrimaryModel, req)
	if err == nil {
		return Response{Text: text, Model: c.cfg.PrimaryModel}, nil
	}
	if c.cfg.FallbackModel == "" || ctx.Err() != nil {
		return Response{}, err
	}

	c.log.Warn("primary model failed, attempting fallback",
		"primary", c.cfg.PrimaryModel, "fallback", c.cfg.FallbackModel, "err", err)

	text, fbErr := c.callModel(ctx, c.cfg.FallbackModel, req)
	if fbErr != nil {
		return Response{}, fmt.Errorf("all models failed (primary: %v): %w", err, fbErr)
	}
	return Response{Text: text, Model: c.cfg.FallbackModel}, nil
}

func (c *RetryClient) callModel(ctx context.Context, model string, req Request) (string, error) {
	provider, err := ProviderFor(model)
	if err != nil {
		return "", &ProviderError{Model: model, Attempts: 1, Err: err}
	}
	b, ok := c.backends[provider]
	if !ok {
		return "", &ProviderError{Provider: provider, Model: model, Attempts: 1,
			Err: fmt.Errorf("no credentials configured for provider %s", provider)}
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := retry.ExponentialBackoff(attempt-1, c.cfg.RetryBaseDelay)
			c.log.Info("retrying model call", "model", model, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return "", &ProviderError{Provider: provider, Model: model, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		if err := c.acquire(ctx); err != nil {
			return "", &ProviderError{Provider: provider, Model: model, Attempts: attempt, Err: err}
		}
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		text, err := b.Generate(callCtx, model, req)
		cancel()
		c.release()

		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", &ProviderError{Provider: provider, Model: model, Attempts: attempt + 1, Err: ctx.Err()}
		}
		if !transient(provider, err) {
			return "", &ProviderError{Provider: provider, Model: model, Attempts: attempt + 1, Err: err}
		}
		c.log.Warn("transient model failure", "model", model, "attempt", attempt+1, "err", err)
	}
	return "", &ProviderError{Provider: provider, Model: model, Attempts: c.cfg.MaxRetries, Transient: true, Err: lastErr}
}

// acquire takes an in-flight slot and waits out the minimum spacing between
// call starts.
func (c *RetryClient) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if c.cfg.CallSpacing > 0 {
		c.mu.Lock()
		now := time.Now()
		start := c.nextStart
		if start.Before(now) {
			start = now
		}
		c.nextStart = start.Add(c.cfg.CallSpacing)
		c.mu.Unlock()

		if wait := time.Until(start); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				c.release()
				return ctx.Err()
			}
		}
	}
	return nil
}

func (c *RetryClient) release() { <-c.sem }

// transient classifies failures worth retrying: timeouts, rate limits and
// server-side errors. Malformed requests and auth failures fail immediately.
func transient(provider Provider, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	switch provider {
	case ProviderOpenAI:
		return openAITransient(err)
	case ProviderGoogle:
		return googleTransient(err)
	default:
		return false
	}
}
