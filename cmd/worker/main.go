package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"paper-summarizer/internal/app"
	"paper-summarizer/internal/cache"
	"paper-summarizer/internal/httputil"
	"paper-summarizer/internal/queue"
	"paper-summarizer/internal/store"
	"paper-summarizer/internal/summarizer"
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
	deps.Log.Info("summarize worker starting")

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		return deps.Queue.Worker(ctx, queue.TaskTypeSummarize, func(ctx context.Context, task queue.Task) error {
			var payload summarizeTaskPayload
			if err := json.Unmarshal(task.Payload, &payload); err != nil {
				return err
			}
			return handleSummarize(ctx, deps, payload)
		})
	})

	g.Go(func() error {
		return httputil.ServeHealth(deps.Log, deps.Config.Port, "worker")
	})

	if err := g.Wait(); err != nil {
		deps.Log.Error("worker service stopped", "err", err)
	}
}

func handleSummarize(ctx context.Context, deps app.Deps, payload summarizeTaskPayload) error {
	log := deps.Log.With("document_id", payload.DocumentID)

	key := cache.Key(payload.Content)
	cached, err := deps.Cache.GetSummary(ctx, key)
	if err != nil {
		log.Warn("cache lookup failed", "err", err)
	}
	if cached != nil {
		log.Info("summary cache hit, skipping model calls")
		if err := deps.Store.SaveSummary(ctx, payload.DocumentID, *cached); err != nil {
			return err
		}
		return deps.Store.UpdateDocumentStatus(ctx, payload.DocumentID, store.StatusReady)
	}

	res, err := deps.Summarizer.Summarize(ctx, payload.Content, payload.Title)
	if err != nil {
		log.Error("summarization failed", "err", err)
		if upErr := deps.Store.UpdateDocumentStatus(ctx, payload.DocumentID, store.StatusFailed); upErr != nil {
			log.Error("failed to mark document failed", "err", upErr)
		}
		if errors.Is(err, summarizer.ErrInsufficientContent) {
			// Permanent: re-running the pipeline cannot recover content
			// the document does not have.
			return nil
		}
		return err
	}

	log.Info("summarization complete",
		"sections", len(res.Metrics.SectionsDetected),
		"structure_valid", res.Metrics.StructureValid,
		"skipped_sections", res.Metrics.SkippedSections,
		"soft_gaps", res.Metrics.SoftGaps,
		"numeric_mismatches", len(res.Metrics.NumericMismatches),
		"fallback_used", res.Metrics.FallbackUsed,
		"model", res.Summary.ModelUsed,
	)

	if err := deps.Store.SaveSummary(ctx, payload.DocumentID, res.Summary); err != nil {
		return err
	}
	if err := deps.Cache.SetSummary(ctx, key, &res.Summary, deps.Config.CacheTTL); err != nil {
		log.Warn("failed to cache summary", "err", err)
	}
	return deps.Store.UpdateDocumentStatus(ctx, payload.DocumentID, store.StatusReady)
}
