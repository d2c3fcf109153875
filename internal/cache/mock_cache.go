package cache

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"paper-summarizer/internal/summary"
)

// MockCache is a mock implementation of Cache using testify/mock.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetSummary(ctx context.Context, key string) (*summary.StructuredSummary, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*summary.StructuredSummary), args.Error(1)
}

func (m *MockCache) SetSummary(ctx context.Context, key string, sum *summary.StructuredSummary, ttl time.Duration) error {
	args := m.Called(ctx, key, sum, ttl)
	return args.Error(0)
}

func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
