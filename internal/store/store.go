package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"paper-summarizer/internal/summary"
)

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrSummaryNotFound  = errors.New("summary not found")
)

type Document struct {
	ID        uuid.UUID
	Filename  string
	Title     string
	Status    DocumentStatus
	CreatedAt time.Time
}

// Store defines the persistence contract for documents and their
// generated summaries.
type Store interface {
	CreateDocument(ctx context.Context, filename, title string) (Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error
	SaveSummary(ctx context.Context, docID uuid.UUID, sum summary.StructuredSummary) error
	GetSummary(ctx context.Context, docID uuid.UUID) (summary.StructuredSummary, error)
}
