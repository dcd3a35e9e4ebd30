package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/rydora/internal/config"
	"github.com/hitoshi/rydora/internal/session"
)

// setTestEnv は開発環境のメモリストア構成を設定する。
func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("RYDORA_CONFIG_FILE", "")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("PROVIDER_API_URL", "http://provider.internal")
	t.Setenv("LOG_LEVEL", "info")
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.ProviderURLDefault != "http://provider.internal" {
		t.Errorf("ProviderURLDefault = %q", cfg.ProviderURLDefault)
	}

	// グローバルロガーがJSON出力に設定されていること
	slog.Default().Info("init test")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
	if entry["service"] != "rydora" {
		t.Errorf("service = %v, want rydora", entry["service"])
	}
}

func TestInit_AppliesLogLevel(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("Init: %v", err)
	}

	slog.Default().Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info log written at warn level: %s", buf.String())
	}
}

func TestInit_WithInvalidConfig_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("SESSION_STORE", "memcached")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for unsupported session store, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestInit_ProductionRequiresProviderURL(t *testing.T) {
	setTestEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PROVIDER_API_URL_PROD", "")
	t.Setenv("JWT_SECRET", "prod-secret")

	var buf bytes.Buffer
	if _, err := Init(&buf); err == nil || !strings.Contains(err.Error(), "PROVIDER_API_URL_PROD") {
		t.Errorf("err = %v, want missing PROVIDER_API_URL_PROD", err)
	}
}

func TestOpenSessionStore_Memory(t *testing.T) {
	setTestEnv(t)
	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	store, closeStore, err := openSessionStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openSessionStore: %v", err)
	}
	defer closeStore()

	if _, ok := store.(*session.MemoryStore); !ok {
		t.Errorf("store = %T, want *session.MemoryStore", store)
	}
	if _, ok := store.(session.Purger); !ok {
		t.Error("memory store should support sweeping")
	}
}

func TestBuildRouter_ServesHealthAndMetrics(t *testing.T) {
	setTestEnv(t)
	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	router, limiter, err := buildRouter(cfg, session.NewMemoryStore(), prometheus.NewRegistry(), slog.Default())
	if err != nil {
		t.Fatalf("buildRouter: %v", err)
	}
	defer limiter.Stop()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "rydora_http_responses_total") {
		t.Errorf("/metrics status = %d, body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("/api/auth/me status = %d, want 401", w.Code)
	}
}

func TestBuildRouter_RejectsPrivateOpenDataURL(t *testing.T) {
	setTestEnv(t)
	t.Setenv("NYC_OPEN_DATA_URL", "http://127.0.0.1/resource.json")
	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, _, err := buildRouter(cfg, session.NewMemoryStore(), prometheus.NewRegistry(), slog.Default()); err == nil {
		t.Error("expected error for private open data URL")
	}
}

func TestRunMigrate_RequiresDatabaseURL(t *testing.T) {
	if err := runMigrate(&config.Config{}); err == nil {
		t.Error("expected error without DATABASE_URL")
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	got := maskDatabaseURL("postgres://user:secret@db:5432/rydora")
	if strings.Contains(got, "secret") {
		t.Errorf("masked URL leaks password: %q", got)
	}
	if got := maskDatabaseURL("short"); got != "***" {
		t.Errorf("maskDatabaseURL(short) = %q", got)
	}
}
