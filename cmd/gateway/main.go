package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"paper-summarizer/internal/app"
	"paper-summarizer/internal/httputil"
	"paper-summarizer/internal/ingest"
	"paper-summarizer/internal/queue"
	"paper-summarizer/internal/store"
)

type summarizeTaskPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
}

func main() {
	deps, err := app.Build()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}
	r := httputil.NewRouter(deps.Log)

	r.Post("/api/papers/upload", uploadHandler(deps))
	r.Get("/api/papers/{id}/summary", summaryHandler(deps))
	r.Get("/healthz", httputil.HealthHandler(deps.Log))

	addr := fmt.Sprintf(":%d", deps.Config.Port)
	deps.Log.Info("gateway listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		deps.Log.Error("server failed", "err", err)
	}
}

var allowedExtensions = map[string]bool{
	".pdf": true,
	".xml": true,
	".txt": true,
}

func uploadHandler(deps app.Deps) http.HandlerFunc {
	maxFileSize := deps.Config.MaxUploadSize
	cleaner := ingest.DefaultCleaner()

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.ContentLength > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httputil.Fail(deps.Log, w, "file is required", err, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Size > maxFileSize {
			httputil.Fail(deps.Log, w, fmt.Sprintf("file too large (max %d bytes)", maxFileSize), nil, http.StatusBadRequest)
			return
		}

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedExtensions[ext] {
			httputil.Fail(deps.Log, w, "unsupported file type (only PDF, XML and TXT allowed)", nil, http.StatusBadRequest)
			return
		}

		content, err := io.ReadAll(file)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
			return
		}

		text, err := ingest.Extract(header.Filename, content)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to extract text from file", err, http.StatusBadRequest)
			return
		}
		text = cleaner.Clean(text)
		if text == "" {
			httputil.Fail(deps.Log, w, "document contains no extractable text", nil, http.StatusBadRequest)
			return
		}

		title := strings.TrimSpace(r.FormValue("title"))
		if title == "" {
			title = ingest.ExtractTitle(text)
		}

		doc, err := deps.Store.CreateDocument(ctx, header.Filename, title)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to persist document", err, http.StatusInternalServerError)
			return
		}

		payload := summarizeTaskPayload{
			DocumentID: doc.ID,
			Filename:   header.Filename,
			Title:      title,
			Content:    text,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			fail(deps, ctx, w, "marshal payload failed", err, doc.ID, http.StatusInternalServerError, true)
			return
		}
		task := queue.Task{Type: queue.TaskTypeSummarize, Payload: body}
		if err := queue.EnqueueWithRetry(ctx, deps.Queue, task, 3, 200*time.Millisecond); err != nil {
			fail(deps, ctx, w, "failed to enqueue document; please retry", err, doc.ID, http.StatusInternalServerError, true)
			return
		}

		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"document_id": doc.ID.String(),
			"status":      doc.Status,
		})
	}
}

// fail is the gateway-specific error handler that can mark documents as failed.
func fail(deps app.Deps, ctx context.Context, w http.ResponseWriter, message string, err error, docID uuid.UUID, status int, markFailed bool) {
	log := deps.Log.With("document_id", docID)
	if markFailed && docID != uuid.Nil {
		if upErr := deps.Store.UpdateDocumentStatus(ctx, docID, store.StatusFailed); upErr != nil {
			log.Error("failed to mark document failed", "err", upErr)
		}
	}
	httputil.Fail(log, w, message, err, status)
}

func summaryHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := chi.URLParam(r, "id")
		docID, err := uuid.Parse(idStr)
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid document id", err, http.StatusBadRequest)
			return
		}

		doc, err := deps.Store.GetDocument(r.Context(), docID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, store.ErrDocumentNotFound) {
				status = http.StatusNotFound
			}
			httputil.Fail(deps.Log, w, "document not found", err, status)
			return
		}

		sum, err := deps.Store.GetSummary(r.Context(), docID)
		if err != nil {
			if errors.Is(err, store.ErrSummaryNotFound) {
				httputil.WriteJSON(w, http.StatusOK, map[string]any{
					"document_id": docID.String(),
					"status":      doc.Status,
				})
				return
			}
			httputil.Fail(deps.Log, w, "failed to load summary", err, http.StatusInternalServerError)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"document_id": docID.String(),
			"status":      doc.Status,
			"summary":     sum,
			"markdown":    sum.ToMarkdown(),
		})
	}
}
