package handlers

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
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"hybrid-rag/internal/domain"
	"hybrid-rag/internal/indexer"
	"hybrid-rag/internal/metrics"
	"hybrid-rag/internal/rag"
	ragmocks "hybrid-rag/internal/rag/mocks"
	"hybrid-rag/internal/service"
	servicemocks "hybrid-rag/internal/service/mocks"
	"hybrid-rag/internal/vectorstore"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "validation", err: &domain.ValidationError{Field: "top_k", Message: "out of range"}, wantStatus: http.StatusBadRequest},
		{name: "dimension mismatch", err: fmt.Errorf("failed: %w", &domain.DimensionMismatchError{Expected: 3, Got: 2, What: "query"}), wantStatus: http.StatusBadRequest},
		{name: "unsupported format", err: &domain.UnsupportedFormatError{FileType: ".docx"}, wantStatus: http.StatusUnsupportedMediaType},
		{name: "not found", err: domain.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "external service", err: fmt.Errorf("failed to embed: %w", domain.ErrExternalService), wantStatus: http.StatusBadGateway},
		{name: "backend unavailable", err: domain.ErrBackendUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
		{name: "other", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(context.Background(), rec, tt.err, "default message")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		stats      rag.IndexStats
		statsErr   error
		wantStatus int
		wantHealth string
	}{
		{name: "healthy", stats: rag.IndexStats{TotalDocuments: 2, TotalChunks: 7, VectorBackend: "flat"}, wantStatus: http.StatusOK, wantHealth: "healthy"},
		{name: "index unavailable", statsErr: domain.ErrBackendUnavailable, wantStatus: http.StatusServiceUnavailable, wantHealth: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			engine := ragmocks.NewMockEngine(ctrl)
			engine.EXPECT().Stats(gomock.Any()).Return(tt.stats, tt.statsErr)

			rec := httptest.NewRecorder()
			NewHealthHandler(engine).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.wantHealth {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantHealth)
			}
			if resp.DocumentsIndexed != tt.stats.TotalDocuments || resp.TotalChunks != tt.stats.TotalChunks {
				t.Errorf("counts = %d/%d, want %d/%d", resp.DocumentsIndexed, resp.TotalChunks, tt.stats.TotalDocuments, tt.stats.TotalChunks)
			}
		})
	}
}

func TestIngestHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mockSetup  func(engine *ragmocks.MockEngine)
		wantStatus int
		wantChunks int
	}{
		{
			name: "ingests documents",
			body: `{"documents":[{"id":"a","text":"Python is a programming language."},{"id":"b","text":"Bananas are yellow."}]}`,
			mockSetup: func(engine *ragmocks.MockEngine) {
				engine.EXPECT().
					Ingest(gomock.Any(), []domain.Document{
						{ID: "a", Text: "Python is a programming language."},
						{ID: "b", Text: "Bananas are yellow."},
					}).
					Return(2, nil)
			},
			wantStatus: http.StatusOK,
			wantChunks: 2,
		},
		{
			name:       "missing documents field",
			body:       `{}`,
			mockSetup:  func(*ragmocks.MockEngine) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "document without text",
			body:       `{"documents":[{"id":"a"}]}`,
			mockSetup:  func(*ragmocks.MockEngine) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"documents":`,
			mockSetup:  func(*ragmocks.MockEngine) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "duplicate id rejected by engine",
			body: `{"documents":[{"id":"a","text":"x"}]}`,
			mockSetup: func(engine *ragmocks.MockEngine) {
				engine.EXPECT().Ingest(gomock.Any(), gomock.Any()).
					Return(0, &domain.ValidationError{Field: "documents", Message: "document a is already indexed"})
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			engine := ragmocks.NewMockEngine(ctrl)
			tt.mockSetup(engine)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(tt.body))
			NewIngestHandler(engine, metrics.NewTracker()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp IngestResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if !resp.Success || resp.NumChunksCreated != tt.wantChunks || resp.NumDocuments != 2 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestQueryHandler(t *testing.T) {
	result := rag.QueryResult{
		Query:      "What is Python?",
		NumResults: 1,
		RetrievedChunks: []domain.RetrievedChunk{{
			ChunkID: "a_chunk_0",
			Text:    "Python is a programming language.",
			Score:   0.404,
			Rank:    1,
		}},
		Metrics: &rag.RetrievalMetrics{QueryTimeMs: 1.5, NumChunksRetrieved: 1},
	}

	tests := []struct {
		name       string
		body       string
		mockSetup  func(engine *ragmocks.MockEngine)
		wantStatus int
	}{
		{
			name: "defaults top_k and metrics",
			body: `{"query":"What is Python?"}`,
			mockSetup: func(engine *ragmocks.MockEngine) {
				engine.EXPECT().Query(gomock.Any(), "What is Python?", rag.DefaultTopK, true).Return(result, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "explicit top_k without metrics",
			body: `{"query":"What is Python?","top_k":2,"return_metrics":false}`,
			mockSetup: func(engine *ragmocks.MockEngine) {
				engine.EXPECT().Query(gomock.Any(), "What is Python?", 2, false).Return(result, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing query",
			body:       `{"top_k":2}`,
			mockSetup:  func(*ragmocks.MockEngine) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid top_k",
			body: `{"query":"q","top_k":0}`,
			mockSetup: func(engine *ragmocks.MockEngine) {
				engine.EXPECT().Query(gomock.Any(), "q", 0, true).
					Return(rag.QueryResult{}, &domain.ValidationError{Field: "top_k", Message: "must be between 1 and 100"})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "embedding service down",
			body: `{"query":"q"}`,
			mockSetup: func(engine *ragmocks.MockEngine) {
				engine.EXPECT().Query(gomock.Any(), "q", rag.DefaultTopK, true).
					Return(rag.QueryResult{}, fmt.Errorf("failed to embed query: %w", domain.ErrExternalService))
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			engine := ragmocks.NewMockEngine(ctrl)
			tt.mockSetup(engine)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(tt.body))
			NewQueryHandler(engine, 0).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got rag.QueryResult
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if got.NumResults != 1 || got.RetrievedChunks[0].ChunkID != "a_chunk_0" {
				t.Errorf("response = %+v", got)
			}
		})
	}
}

func TestAskHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		mockSetup  func(svc *servicemocks.MockAskService)
		wantStatus int
	}{
		{
			name: "answers",
			body: `{"question":"What is Python?","top_k":2}`,
			mockSetup: func(svc *servicemocks.MockAskService) {
				svc.EXPECT().
					Ask(gomock.Any(), service.AskRequest{Question: "What is Python?", TopK: 2}).
					Return(service.AskResponse{Answer: "A language.", Sources: []service.Source{{DocumentID: "a", ChunkID: "a_chunk_0", Similarity: 0.4}}}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed json",
			body:       `not json`,
			mockSetup:  func(*servicemocks.MockAskService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "validation error",
			body: `{"question":"hi"}`,
			mockSetup: func(svc *servicemocks.MockAskService) {
				svc.EXPECT().Ask(gomock.Any(), gomock.Any()).
					Return(service.AskResponse{}, &domain.ValidationError{Field: "question", Message: "too short"})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "generation disabled",
			body: `{"question":"What is Python?"}`,
			mockSetup: func(svc *servicemocks.MockAskService) {
				svc.EXPECT().Ask(gomock.Any(), gomock.Any()).
					Return(service.AskResponse{}, fmt.Errorf("answer generation is disabled: %w", domain.ErrBackendUnavailable))
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc := servicemocks.NewMockAskService(ctrl)
			tt.mockSetup(svc)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(tt.body))
			NewAskHandler(svc).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if msg := decodeError(t, rec); msg == "" {
					t.Error("error message is empty")
				}
				return
			}
			var resp service.AskResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Answer != "A language." || len(resp.Sources) != 1 {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func multipartUpload(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler(t *testing.T) {
	t.Run("indexes text file", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		engine := ragmocks.NewMockEngine(ctrl)
		tracker := metrics.NewTracker()
		engine.EXPECT().
			Ingest(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, docs []domain.Document) (int, error) {
				if len(docs) != 1 || docs[0].Text != "Python is a programming language." {
					t.Errorf("Ingest() docs = %+v", docs)
				}
				if !strings.HasPrefix(docs[0].ID, "doc_") || !strings.HasSuffix(docs[0].ID, "_notes.txt") {
					t.Errorf("document ID = %q", docs[0].ID)
				}
				return 1, nil
			})

		rec := httptest.NewRecorder()
		NewUploadHandler(engine, tracker).ServeHTTP(rec, multipartUpload(t, "file", "notes.txt", []byte("Python   is a programming language.\n")))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
		}
		var resp UploadResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Filename != "notes.txt" || resp.ChunksCreated != 1 || resp.Status != "indexed" {
			t.Errorf("response = %+v", resp)
		}
		if got := tracker.Report().DocumentMetrics.Count; got != 1 {
			t.Errorf("tracked documents = %d, want 1", got)
		}
	})

	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
	}{
		{
			name:       "unsupported type",
			req:        func(t *testing.T) *http.Request { return multipartUpload(t, "file", "notes.docx", []byte("x")) },
			wantStatus: http.StatusUnsupportedMediaType,
		},
		{
			name:       "missing file field",
			req:        func(t *testing.T) *http.Request { return multipartUpload(t, "attachment", "notes.txt", []byte("x")) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no extractable text",
			req:        func(t *testing.T) *http.Request { return multipartUpload(t, "file", "blank.txt", []byte("  \n ")) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unreadable pdf",
			req:        func(t *testing.T) *http.Request { return multipartUpload(t, "file", "broken.pdf", []byte("not a pdf")) },
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			rec := httptest.NewRecorder()
			NewUploadHandler(ragmocks.NewMockEngine(ctrl), nil).ServeHTTP(rec, tt.req(t))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestDocumentsHandler(t *testing.T) {
	newRouter := func(h *DocumentsHandler) http.Handler {
		r := chi.NewRouter()
		r.Get("/api/documents", h.List)
		r.Delete("/api/documents/{id}", h.Delete)
		return r
	}

	t.Run("list", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		engine := ragmocks.NewMockEngine(ctrl)
		engine.EXPECT().ListDocuments(gomock.Any()).Return([]vectorstore.DocumentInfo{
			{DocumentID: "a", ChunkCount: 2},
			{DocumentID: "b", ChunkCount: 1},
		}, nil)

		rec := httptest.NewRecorder()
		newRouter(NewDocumentsHandler(engine)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp DocumentListResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Total != 2 || resp.Documents[0].DocumentID != "a" {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("list empty", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		engine := ragmocks.NewMockEngine(ctrl)
		engine.EXPECT().ListDocuments(gomock.Any()).Return(nil, nil)

		rec := httptest.NewRecorder()
		newRouter(NewDocumentsHandler(engine)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

		if !strings.Contains(rec.Body.String(), `"documents":[]`) {
			t.Errorf("body = %s, want empty documents array", rec.Body.String())
		}
	})

	deleteTests := []struct {
		name       string
		deleted    bool
		err        error
		wantStatus int
	}{
		{name: "deleted", deleted: true, wantStatus: http.StatusOK},
		{name: "unknown document", deleted: false, wantStatus: http.StatusNotFound},
		{name: "rebuild failed", err: fmt.Errorf("failed to re-embed: %w", domain.ErrExternalService), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range deleteTests {
		t.Run("delete "+tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			engine := ragmocks.NewMockEngine(ctrl)
			engine.EXPECT().DeleteDocument(gomock.Any(), "doc_1_a.txt").Return(tt.deleted, tt.err)

			rec := httptest.NewRecorder()
			newRouter(NewDocumentsHandler(engine)).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/doc_1_a.txt", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestInfoHandler_Metrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := ragmocks.NewMockEngine(ctrl)
	engine.EXPECT().Stats(gomock.Any()).Return(rag.IndexStats{TotalChunks: 4, HybridAlpha: 0.7}, nil)
	engine.EXPECT().MetricsSummary().Return(rag.MetricsSummary{TotalQueries: 3, AvgQueryTimeMs: 2})

	tracker := metrics.NewTracker()
	tracker.TrackError(context.Background(), "upload", "bad file")

	rec := httptest.NewRecorder()
	NewInfoHandler(engine, tracker).Metrics(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp MetricsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SystemMetrics.TotalQueries != 3 || resp.IndexStats.TotalChunks != 4 {
		t.Errorf("response = %+v", resp)
	}
	if resp.ServiceMetrics == nil || resp.ServiceMetrics.Summary.TotalErrors != 1 {
		t.Errorf("service metrics = %+v", resp.ServiceMetrics)
	}
}

func TestInfoHandler_ChunkingInfo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := ragmocks.NewMockEngine(ctrl)
	engine.EXPECT().ChunkingInfo(gomock.Any()).Return(indexer.ChunkingInfo{
		Strategy:        "semantic_density",
		TargetChunkSize: 512,
		MinChunkSize:    128,
		MaxChunkSize:    1024,
		OverlapTokens:   50,
	}, nil)

	rec := httptest.NewRecorder()
	NewInfoHandler(engine, nil).ChunkingInfo(rec, httptest.NewRequest(http.MethodGet, "/api/chunking-info", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var info indexer.ChunkingInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if info.TargetChunkSize != 512 || info.Strategy != "semantic_density" {
		t.Errorf("info = %+v", info)
	}
}
