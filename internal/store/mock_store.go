package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"paper-summarizer/internal/summary"
)

// MockStore is a mock implementation of Store using testify/mock.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateDocument(ctx context.Context, filename, title string) (Document, error) {
	args := m.Called(ctx, filename, title)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockStore) SaveSummary(ctx context.Context, docID uuid.UUID, sum summary.StructuredSummary) error {
	args := m.Called(ctx, docID, sum)
	return args.Error(0)
}

func (m *MockStore) GetSummary(ctx context.Context, docID uuid.UUID) (summary.StructuredSummary, error) {
	args := m.Called(ctx, docID)
	return args.Get(0).(summary.StructuredSummary), args.Error(1)
}
