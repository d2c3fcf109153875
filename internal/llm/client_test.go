package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, model string, req Request) (string, error)
}

func (f *fakeBackend) Generate(_ context.Context, model string, req Request) (string, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.fn(n, model, req)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testClient(cfg Config, backends map[Provider]backend) *RetryClient {
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = time.Millisecond
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newClient(cfg, log, backends)
}

func TestProviderFor(t *testing.T) {
	tests := []struct {
		model   string
		want    Provider
		wantErr bool
	}{
		{"gpt-4o-mini", ProviderOpenAI, false},
		{"gpt-4-turbo", ProviderOpenAI, false},
		{"gemini-2.0-flash", ProviderGoogle, false},
		{"llama-3-70b", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ProviderFor(tt.model)
		if tt.wantErr {
			assert.Error(t, err, tt.model)
			continue
		}
		require.NoError(t, err, tt.model)
		assert.Equal(t, tt.want, got, tt.model)
	}
}

func TestCompleteFallbackAfterPrimaryExhaustion(t *testing.T) {
	primary := &fakeBackend{fn: func(int, string, Request) (string, error) {
		return "", context.DeadlineExceeded // always transient
	}}
	fallback := &fakeBackend{fn: func(_ int, model string, _ Request) (string, error) {
		return "fallback answer", nil
	}}

	c := testClient(Config{
		PrimaryModel:  "gpt-4o-mini",
		FallbackModel: "gemini-2.0-flash",
		MaxRetries:    3,
	}, map[Provider]backend{ProviderOpenAI: primary, ProviderGoogle: fallback})

	resp, err := c.Complete(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", resp.Text)
	assert.Equal(t, "gemini-2.0-flash", resp.Model)
	assert.Equal(t, 3, primary.callCount(), "primary retried to exhaustion")
	assert.Equal(t, 1, fallback.callCount())
}

func TestCallModelNonTransientFailsImmediately(t *testing.T) {
	bad := errors.New("invalid request")
	b := &fakeBackend{fn: func(int, string, Request) (string, error) { return "", bad }}

	c := testClient(Config{PrimaryModel: "gpt-4o-mini", MaxRetries: 5},
		map[Provider]backend{ProviderOpenAI: b})

	_, err := c.callModel(context.Background(), "gpt-4o-mini", Request{Prompt: "x"})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Attempts)
	assert.False(t, perr.Transient)
	assert.Equal(t, 1, b.callCount(), "no retry on non-transient failure")
}

func TestCompleteBothModelsExhausted(t *testing.T) {
	b := &fakeBackend{fn: func(int, string, Request) (string, error) {
		return "", context.DeadlineExceeded
	}}
	g := &fakeBackend{fn: func(int, string, Request) (string, error) {
		return "", context.DeadlineExceeded
	}}

	c := testClient(Config{
		PrimaryModel:  "gpt-4o-mini",
		FallbackModel: "gemini-2.0-flash",
		MaxRetries:    2,
	}, map[Provider]backend{ProviderOpenAI: b, ProviderGoogle: g})

	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "gemini-2.0-flash", perr.Model)
	assert.True(t, perr.Transient)
	assert.Equal(t, 2, b.callCount())
	assert.Equal(t, 2, g.callCount())
}

func TestCompleteAppliesTemperatureDefault(t *testing.T) {
	var got atomic.Value
	b := &fakeBackend{fn: func(_ int, _ string, req Request) (string, error) {
		got.Store(req.Temperature)
		return "ok", nil
	}}

	c := testClient(Config{PrimaryModel: "gpt-4o-mini", Temperature: 0.2},
		map[Provider]backend{ProviderOpenAI: b})

	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, got.Load().(float64), 1e-9)

	// Explicit temperature passes through unchanged.
	_, err = c.Complete(context.Background(), Request{Prompt: "x", Temperature: 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, got.Load().(float64), 1e-9)
}

func TestCompleteNoCredentialsForModel(t *testing.T) {
	c := testClient(Config{PrimaryModel: "gemini-2.0-flash"},
		map[Provider]backend{ProviderOpenAI: &fakeBackend{fn: func(int, string, Request) (string, error) { return "ok", nil }}})

	_, err := c.Complete(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestInFlightLimit(t *testing.T) {
	var inFlight, maxSeen atomic.Int32
	b := &fakeBackend{fn: func(int, string, Request) (string, error) {
		cur := inFlight.Add(1)
		for {
			prev := maxSeen.Load()
			if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}}

	c := testClient(Config{PrimaryModel: "gpt-4o-mini", MaxInFlight: 2},
		map[Provider]backend{ProviderOpenAI: b})

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := c.Complete(context.Background(), Request{Prompt: "x"})
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, maxSeen.Load(), int32(2))
}

func TestCompleteRespectsCancelledContext(t *testing.T) {
	b := &fakeBackend{fn: func(int, string, Request) (string, error) {
		return "", context.DeadlineExceeded
	}}
	c := testClient(Config{
		PrimaryModel:  "gpt-4o-mini",
		FallbackModel: "gemini-2.0-flash",
		MaxRetries:    3,
	}, map[Provider]backend{ProviderOpenAI: b, ProviderGoogle: b})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, Request{Prompt: "x"})
	require.Error(t, err)
	// The fallback pass is skipped once the run context is gone.
	assert.LessOrEqual(t, b.callCount(), 1)
}
