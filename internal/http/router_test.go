package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"hybrid-rag/internal/rag"
	ragmocks "hybrid-rag/internal/rag/mocks"
	servicemocks "hybrid-rag/internal/service/mocks"
)

func TestNewRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := NewRouter(&Deps{
		Engine:     ragmocks.NewMockEngine(ctrl),
		AskService: servicemocks.NewMockAskService(ctrl),
	})

	if router == nil {
		t.Fatal("NewRouter() returned nil")
	}
}

func TestRouter_Routes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := ragmocks.NewMockEngine(ctrl)
	engine.EXPECT().Stats(gomock.Any()).Return(rag.IndexStats{}, nil).AnyTimes()
	engine.EXPECT().ListDocuments(gomock.Any()).Return(nil, nil).AnyTimes()
	engine.EXPECT().DeleteDocument(gomock.Any(), "missing").Return(false, nil).AnyTimes()
	engine.EXPECT().MetricsSummary().Return(rag.MetricsSummary{Empty: true}).AnyTimes()

	router := NewRouter(&Deps{
		Engine:     engine,
		AskService: servicemocks.NewMockAskService(ctrl),
	})

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "GET /api/health", method: http.MethodGet, path: "/api/health", wantStatus: http.StatusOK},
		{name: "POST /api/ingest exists", method: http.MethodPost, path: "/api/ingest", body: "{", wantStatus: http.StatusBadRequest},
		{name: "POST /api/query exists", method: http.MethodPost, path: "/api/query", body: "{}", wantStatus: http.StatusBadRequest},
		{name: "POST /api/ask exists", method: http.MethodPost, path: "/api/ask", body: "{", wantStatus: http.StatusBadRequest},
		{name: "POST /api/upload exists", method: http.MethodPost, path: "/api/upload", wantStatus: http.StatusBadRequest},
		{name: "GET /api/documents", method: http.MethodGet, path: "/api/documents", wantStatus: http.StatusOK},
		{name: "DELETE unknown document", method: http.MethodDelete, path: "/api/documents/missing", wantStatus: http.StatusNotFound},
		{name: "GET /api/metrics", method: http.MethodGet, path: "/api/metrics", wantStatus: http.StatusOK},
		{name: "GET on POST route", method: http.MethodGet, path: "/api/query", wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown route", method: http.MethodGet, path: "/api/unknown", wantStatus: http.StatusNotFound},
		{name: "preflight", method: http.MethodOptions, path: "/api/query", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_RateLimitsWriteRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	engine := ragmocks.NewMockEngine(ctrl)
	engine.EXPECT().Stats(gomock.Any()).Return(rag.IndexStats{}, nil).AnyTimes()

	router := NewRouter(&Deps{
		Engine:         engine,
		AskService:     servicemocks.NewMockAskService(ctrl),
		RateLimiter:    NewRateLimiter(RateLimitConfig{Requests: 1, Window: time.Hour}),
		RequestTimeout: time.Second,
	})

	send := func(method, path string) int {
		req := httptest.NewRequest(method, path, strings.NewReader("{}"))
		req.Header.Set(UserIDHeader, "tester")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(http.MethodPost, "/api/query"); code != http.StatusBadRequest {
		t.Errorf("first query status = %d, want 400", code)
	}
	if code := send(http.MethodPost, "/api/query"); code != http.StatusTooManyRequests {
		t.Errorf("second query status = %d, want 429", code)
	}
	// health is not rate limited
	for i := 0; i < 3; i++ {
		if code := send(http.MethodGet, "/api/health"); code != http.StatusOK {
			t.Errorf("health status = %d, want 200", code)
		}
	}
}
