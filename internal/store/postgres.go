package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"paper-summarizer/internal/summary"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock prevents concurrent migrations when several services
	// start at once. A dedicated migration tool would replace this in a
	// larger deployment.
	const lockID = 823471901

	var acquired bool
	if err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Another service is migrating; wait briefly and skip.
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY,
			filename TEXT,
			title TEXT,
			status TEXT,
			created_at TIMESTAMPTZ DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS summaries (
			document_id UUID PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
			title TEXT,
			objective TEXT,
			study_type TEXT,
			population TEXT,
			methods TEXT,
			key_findings TEXT[],
			limitations TEXT[],
			author_conclusions TEXT,
			keywords TEXT[],
			generated_at TIMESTAMPTZ,
			model_used TEXT,
			safety_disclaimer TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, filename, title string) (Document, error) {
	id := uuid.New()
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents(id, filename, title, status) VALUES($1,$2,$3,$4)`,
		id, filename, title, StatusProcessing)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Filename: filename, Title: title, Status: StatusProcessing, CreatedAt: time.Now()}, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	var doc Document
	row := s.db.QueryRowContext(ctx, `SELECT id, filename, title, status, created_at FROM documents WHERE id=$1`, id)
	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Title, &doc.Status, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status DocumentStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *PostgresStore) SaveSummary(ctx context.Context, docID uuid.UUID, sum summary.StructuredSummary) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries(
			document_id, title, objective, study_type, population, methods,
			key_findings, limitations, author_conclusions, keywords,
			generated_at, model_used, safety_disclaimer)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (document_id) DO UPDATE SET
			title=excluded.title,
			objective=excluded.objective,
			study_type=excluded.study_type,
			population=excluded.population,
			methods=excluded.methods,
			key_findings=excluded.key_findings,
			limitations=excluded.limitations,
			author_conclusions=excluded.author_conclusions,
			keywords=excluded.keywords,
			generated_at=excluded.generated_at,
			model_used=excluded.model_used,
			safety_disclaimer=excluded.safety_disclaimer`,
		docID, sum.Title, sum.Objective, sum.StudyType, sum.Population, sum.Methods,
		pq.Array(orEmpty(sum.KeyFindings)), pq.Array(orEmpty(sum.Limitations)),
		sum.AuthorConclusions, pq.Array(orEmpty(sum.Keywords)),
		sum.GeneratedAt, sum.ModelUsed, sum.SafetyDisclaimer)
	return err
}

func (s *PostgresStore) GetSummary(ctx context.Context, docID uuid.UUID) (summary.StructuredSummary, error) {
	var sum summary.StructuredSummary
	var findings, limitations, keywords []string
	row := s.db.QueryRowContext(ctx, `
		SELECT title, objective, study_type, population, methods,
			key_findings, limitations, author_conclusions, keywords,
			generated_at, model_used, safety_disclaimer
		FROM summaries WHERE document_id=$1`, docID)
	err := row.Scan(&sum.Title, &sum.Objective, &sum.StudyType, &sum.Population, &sum.Methods,
		pq.Array(&findings), pq.Array(&limitations), &sum.AuthorConclusions, pq.Array(&keywords),
		&sum.GeneratedAt, &sum.ModelUsed, &sum.SafetyDisclaimer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return summary.StructuredSummary{}, ErrSummaryNotFound
		}
		return summary.StructuredSummary{}, fmt.Errorf("failed to get summary for doc %s: %w", docID, err)
	}
	sum.KeyFindings = findings
	sum.Limitations = limitations
	sum.Keywords = keywords
	return sum, nil
}

func orEmpty(items []string) []string {
	if len(items) == 0 {
		return []string{}
	}
	return items
}
