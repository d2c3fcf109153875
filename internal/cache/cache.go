package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"paper-summarizer/internal/summary"
)

// Cache stores generated summaries keyed by document content, so
// re-uploading the same paper skips the model calls entirely.
type Cache interface {
	// GetSummary retrieves a cached summary by key. Returns nil on a miss.
	GetSummary(ctx context.Context, key string) (*summary.StructuredSummary, error)

	// SetSummary stores a summary with a TTL.
	SetSummary(ctx context.Context, key string, sum *summary.StructuredSummary, ttl time.Duration) error

	// Close closes the cache connection.
	Close() error
}

// Key derives a stable cache key from document text.
func Key(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
