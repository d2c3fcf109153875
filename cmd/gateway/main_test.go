package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"paper-summarizer/internal/app"
	"paper-summarizer/internal/config"
	"paper-summarizer/internal/queue"
	"paper-summarizer/internal/store"
	"paper-summarizer/internal/summary"
)

const paperText = `Effects of Drug X on Blood Pressure in Adults with Hypertension

ABSTRACT

This randomized controlled trial evaluated drug X in 150 adults with stage 1 hypertension over 12 weeks.

RESULTS

Systolic pressure fell by 23.5 percent (P < 0.05).
`

func newTestDeps(st store.Store, q queue.Queue) app.Deps {
	return app.Deps{
		Store: st,
		Queue: q,
		Config: config.Config{
			MaxUploadSize: 1024 * 1024, // 1MB for tests
		},
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestUploadHandler(t *testing.T) {
	validDocID := uuid.New()

	tests := []struct {
		name          string
		filename      string
		content       []byte
		setup         func(*store.MockStore, *queue.MockQueue)
		wantStatus    int
		checkResponse func(*testing.T, *http.Response)
	}{
		{
			name:     "successful upload extracts title",
			filename: "paper.txt",
			content:  []byte(paperText),
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("CreateDocument", mock.Anything, "paper.txt",
					"Effects of Drug X on Blood Pressure in Adults with Hypertension").
					Return(store.Document{ID: validDocID, Status: store.StatusProcessing}, nil).Once()
				q.On("Enqueue", mock.Anything, mock.MatchedBy(func(task queue.Task) bool {
					var payload summarizeTaskPayload
					if err := json.Unmarshal(task.Payload, &payload); err != nil {
						return false
					}
					return task.Type == queue.TaskTypeSummarize && payload.DocumentID == validDocID
				})).Return(nil).Once()
			},
			wantStatus: http.StatusAccepted,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result map[string]any
				if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if result["document_id"] != validDocID.String() {
					t.Errorf("Expected document_id %s, got %v", validDocID, result["document_id"])
				}
				if result["status"] != string(store.StatusProcessing) {
					t.Errorf("Expected status %s, got %v", store.StatusProcessing, result["status"])
				}
			},
		},
		{
			name:       "file too large",
			filename:   "large.txt",
			content:    make([]byte, 2*1024*1024), // 2MB
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unsupported extension",
			filename:   "paper.docx",
			content:    []byte("content"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "corrupt pdf rejected",
			filename:   "paper.pdf",
			content:    []byte("not really a pdf"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty document rejected",
			filename:   "blank.txt",
			content:    []byte("   \n\n  "),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:     "CreateDocument failure",
			filename: "paper.txt",
			content:  []byte(paperText),
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("CreateDocument", mock.Anything, "paper.txt", mock.Anything).
					Return(store.Document{}, errors.New("db error")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:     "Enqueue failure marks doc failed",
			filename: "paper.txt",
			content:  []byte(paperText),
			setup: func(s *store.MockStore, q *queue.MockQueue) {
				s.On("CreateDocument", mock.Anything, "paper.txt", mock.Anything).
					Return(store.Document{ID: validDocID, Status: store.StatusProcessing}, nil).Once()
				q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("queue error")).Times(3)
				s.On("UpdateDocumentStatus", mock.Anything, validDocID, store.StatusFailed).Return(nil).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(store.MockStore)
			mockQueue := new(queue.MockQueue)

			if tt.setup != nil {
				tt.setup(mockStore, mockQueue)
			}

			deps := newTestDeps(mockStore, mockQueue)
			handler := uploadHandler(deps)

			req, err := createMultipartRequest(tt.filename, tt.content, "")
			if err != nil {
				t.Fatalf("Failed to create request: %v", err)
			}

			w := httptest.NewRecorder()
			handler(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("Expected status %d, got %d. Body: %s", tt.wantStatus, resp.StatusCode, string(body))
			}

			if tt.checkResponse != nil {
				resp.Body = io.NopCloser(bytes.NewReader(w.Body.Bytes()))
				tt.checkResponse(t, resp)
			}

			mockStore.AssertExpectations(t)
			mockQueue.AssertExpectations(t)
		})
	}

	t.Run("explicit title wins over extraction", func(t *testing.T) {
		mockStore := new(store.MockStore)
		mockQueue := new(queue.MockQueue)
		mockStore.On("CreateDocument", mock.Anything, "paper.txt", "My Title").
			Return(store.Document{ID: validDocID, Status: store.StatusProcessing}, nil).Once()
		mockQueue.On("Enqueue", mock.Anything, mock.Anything).Return(nil).Once()

		deps := newTestDeps(mockStore, mockQueue)
		req, err := createMultipartRequest("paper.txt", []byte(paperText), "My Title")
		if err != nil {
			t.Fatalf("Failed to create request: %v", err)
		}

		w := httptest.NewRecorder()
		uploadHandler(deps)(w, req)

		if w.Code != http.StatusAccepted {
			t.Errorf("Expected status 202, got %d. Body: %s", w.Code, w.Body.String())
		}
		mockStore.AssertExpectations(t)
	})

	t.Run("missing file", func(t *testing.T) {
		mockStore := new(store.MockStore)
		mockQueue := new(queue.MockQueue)
		deps := newTestDeps(mockStore, mockQueue)

		req := httptest.NewRequest(http.MethodPost, "/api/papers/upload", nil)
		req.Header.Set("Content-Type", "multipart/form-data")
		w := httptest.NewRecorder()

		uploadHandler(deps)(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}

func TestSummaryHandler(t *testing.T) {
	validDocID := uuid.New()
	readyDoc := store.Document{ID: validDocID, Status: store.StatusReady}

	tests := []struct {
		name          string
		docID         string
		setup         func(*store.MockStore)
		wantStatus    int
		checkResponse func(*testing.T, *http.Response)
	}{
		{
			name:  "successful retrieval",
			docID: validDocID.String(),
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, validDocID).Return(readyDoc, nil).Once()
				s.On("GetSummary", mock.Anything, validDocID).
					Return(summary.StructuredSummary{
						Title:             "Effects of Drug X",
						KeyFindings:       []string{"23.5% reduction (P < 0.05)"},
						AuthorConclusions: "Drug X works.",
						SafetyDisclaimer:  summary.SafetyDisclaimer,
					}, nil).Once()
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result struct {
					DocumentID string                    `json:"document_id"`
					Status     string                    `json:"status"`
					Summary    summary.StructuredSummary `json:"summary"`
					Markdown   string                    `json:"markdown"`
				}
				if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if result.Summary.Title != "Effects of Drug X" {
					t.Errorf("Unexpected summary title: %q", result.Summary.Title)
				}
				if result.Markdown == "" {
					t.Error("Expected markdown rendering in response")
				}
				if result.Status != string(store.StatusReady) {
					t.Errorf("Expected status ready, got %q", result.Status)
				}
			},
		},
		{
			name:       "invalid UUID",
			docID:      "not-a-uuid",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "document not found",
			docID: validDocID.String(),
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, validDocID).
					Return(store.Document{}, store.ErrDocumentNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:  "summary still processing",
			docID: validDocID.String(),
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, validDocID).
					Return(store.Document{ID: validDocID, Status: store.StatusProcessing}, nil).Once()
				s.On("GetSummary", mock.Anything, validDocID).
					Return(summary.StructuredSummary{}, store.ErrSummaryNotFound).Once()
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result map[string]any
				if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
					t.Fatalf("Failed to decode response: %v", err)
				}
				if result["status"] != string(store.StatusProcessing) {
					t.Errorf("Expected processing status, got %v", result["status"])
				}
				if _, ok := result["summary"]; ok {
					t.Error("Did not expect summary in processing response")
				}
			},
		},
		{
			name:  "store error",
			docID: validDocID.String(),
			setup: func(s *store.MockStore) {
				s.On("GetDocument", mock.Anything, validDocID).Return(readyDoc, nil).Once()
				s.On("GetSummary", mock.Anything, validDocID).
					Return(summary.StructuredSummary{}, errors.New("db error")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(store.MockStore)
			mockQueue := new(queue.MockQueue)

			if tt.setup != nil {
				tt.setup(mockStore)
			}

			deps := newTestDeps(mockStore, mockQueue)
			handler := summaryHandler(deps)

			req := httptest.NewRequest(http.MethodGet, "/api/papers/"+tt.docID+"/summary", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.docID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("Expected status %d, got %d. Body: %s", tt.wantStatus, resp.StatusCode, string(body))
			}

			if tt.checkResponse != nil {
				resp.Body = io.NopCloser(bytes.NewReader(w.Body.Bytes()))
				tt.checkResponse(t, resp)
			}

			mockStore.AssertExpectations(t)
			mockQueue.AssertExpectations(t)
		})
	}
}

func createMultipartRequest(filename string, content []byte, title string) (*http.Request, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req := httptest.NewRequest(http.MethodPost, "/api/papers/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return req, nil
}
