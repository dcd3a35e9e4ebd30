package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/rydora/internal/model"
)

// TestMiddlewareChain_LogsSessionUserAndRequestID は
// RequestID -> Logging -> Session の順でchi.Routerに組み込んだ場合に、
// 内側で読み込んだセッションのユーザーIDがアクセスログに出力されることを検証する。
func TestMiddlewareChain_LogsSessionUserAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	loader := &mockSessionLoader{
		loadFn: func(r *http.Request) (*model.Session, error) {
			return &model.Session{ID: "sid", User: &model.User{ID: "user-chain-test"}}, nil
		},
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(NewLoggingMiddleware(logger, nil))
	r.Use(NewSessionMiddleware(loader))
	r.Get("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	if entry["user_id"] != "user-chain-test" {
		t.Errorf("user_id = %v, want user-chain-test", entry["user_id"])
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("expected request_id in log entry")
	}
}

// TestMiddlewareChain_RecoveryInsideLogging は
// パニックが統一フォーマットの500として記録・応答されることを検証する。
func TestMiddlewareChain_RecoveryInsideLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	rec := &mockHTTPRecorder{}

	r := chi.NewRouter()
	r.Use(NewLoggingMiddleware(logger, rec))
	r.Use(NewRecoveryMiddleware())
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", body.Code)
	}
	if len(rec.statuses) != 1 || rec.statuses[0] != http.StatusInternalServerError {
		t.Errorf("recorded = %v", rec.statuses)
	}
}

type mockHTTPRecorder struct {
	statuses []int
}

func (m *mockHTTPRecorder) RecordHTTPResponse(_ string, statusCode int, _ time.Duration) {
	m.statuses = append(m.statuses, statusCode)
}
