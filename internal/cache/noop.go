package cache

import (
	"context"
	"time"

	"paper-summarizer/internal/summary"
)

// NoopCache misses every lookup. Used when no cache backend is
// configured so callers never branch on a nil Cache.
type NoopCache struct{}

func NewNoop() *NoopCache { return &NoopCache{} }

func (*NoopCache) GetSummary(context.Context, string) (*summary.StructuredSummary, error) {
	return nil, nil
}

func (*NoopCache) SetSummary(context.Context, string, *summary.StructuredSummary, time.Duration) error {
	return nil
}

func (*NoopCache) Close() error { return nil }
