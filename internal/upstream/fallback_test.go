package upstream

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// pathRecorder はテストサーバーで呼ばれたパスを記録する。
type pathRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (p *pathRecorder) add(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
}

func (p *pathRecorder) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, v := range p.paths {
		if v == path {
			n++
		}
	}
	return n
}

func newFallbackFixture(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*Client, *FallbackInvoker, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	factory := NewClientFactory(server.Client().Transport, Timeouts{Read: timeout}, logger, nil)
	return factory.New(server.URL, timeout), NewFallbackInvoker(logger), &buf
}

func TestFallbackInvoker_404ThenSuccess_ReturnsSecondBody(t *testing.T) {
	rec := &pathRecorder{}
	client, invoker, _ := newFallbackFixture(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
		switch r.URL.Path {
		case "/api/v1/charges":
			http.NotFound(w, r)
		case "/api/v2/charges":
			w.Write([]byte(`{"result":[{"id":1}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, time.Second)

	resp, err := invoker.Get(context.Background(), client,
		[]string{"/api/v1/charges", "/api/v2/charges", "/api/v3/charges"},
		Request{Operation: "ezpass.list"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if string(resp.Body) != `{"result":[{"id":1}]}` {
		t.Errorf("body = %s", resp.Body)
	}
	if resp.Path != "/api/v2/charges" {
		t.Errorf("Path = %q, want /api/v2/charges", resp.Path)
	}
	if rec.count("/api/v1/charges") != 1 {
		t.Errorf("path 1 called %d times, want 1 (never retried)", rec.count("/api/v1/charges"))
	}
	if rec.count("/api/v3/charges") != 0 {
		t.Error("path 3 should not be attempted after a success")
	}
}

func TestFallbackInvoker_NonRetryableError_ShortCircuits(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError, http.StatusBadGateway} {
		rec := &pathRecorder{}
		client, invoker, _ := newFallbackFixture(t, func(w http.ResponseWriter, r *http.Request) {
			rec.add(r.URL.Path)
			w.WriteHeader(status)
			w.Write([]byte(`{"reason":1,"message":"denied"}`))
		}, time.Second)

		_, err := invoker.Get(context.Background(), client,
			[]string{"/first", "/second"}, Request{Operation: "test"})
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}

		se, ok := AsStatusError(err)
		if !ok || se.StatusCode != status {
			t.Errorf("status %d: error = %v", status, err)
		}
		if rec.count("/second") != 0 {
			t.Errorf("status %d: second path must not be attempted", status)
		}
	}
}

func TestFallbackInvoker_TimeoutContinuesToNextPath(t *testing.T) {
	rec := &pathRecorder{}
	client, invoker, _ := newFallbackFixture(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
		if r.URL.Path == "/slow" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Write([]byte(`[]`))
	}, 100*time.Millisecond)

	resp, err := invoker.Get(context.Background(), client, []string{"/slow", "/fast"}, Request{Operation: "test"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp.Path != "/fast" {
		t.Errorf("Path = %q, want /fast", resp.Path)
	}
	if rec.count("/slow") != 1 {
		t.Errorf("/slow called %d times, want 1", rec.count("/slow"))
	}
}

func TestFallbackInvoker_AllNotFound_ReturnsLastError(t *testing.T) {
	client, invoker, logs := newFallbackFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing " + r.URL.Path))
	}, time.Second)

	_, err := invoker.Get(context.Background(), client, []string{"/a", "/b"}, Request{Operation: "test"})
	if err == nil {
		t.Fatal("expected error")
	}

	se, ok := AsStatusError(err)
	if !ok {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.Path != "/b" || string(se.Body) != "missing /b" {
		t.Errorf("last error = %+v, want the /b attempt", se)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should be true")
	}
	if !bytes.Contains(logs.Bytes(), []byte("upstream fallback paths exhausted")) {
		t.Error("expected exhaustion to be logged")
	}
}

func TestFallbackInvoker_ForcesGETAndForwardsAuthorization(t *testing.T) {
	client, invoker, _ := newFallbackFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.URL.Query().Get("dateFrom"); got != "2024-01-01" {
			t.Errorf("dateFrom = %q", got)
		}
		w.Write([]byte(`{}`))
	}, time.Second)

	_, err := invoker.Get(context.Background(), client, []string{"/x"}, Request{
		Method:        http.MethodPost,
		Authorization: "Bearer tok",
		Query:         map[string][]string{"dateFrom": {"2024-01-01"}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestFallbackInvoker_NoPaths(t *testing.T) {
	invoker := NewFallbackInvoker(nil)
	if _, err := invoker.Get(context.Background(), nil, nil, Request{}); err != ErrNoCandidatePaths {
		t.Errorf("err = %v, want ErrNoCandidatePaths", err)
	}
}

func TestFallbackInvoker_CanceledContextStops(t *testing.T) {
	rec := &pathRecorder{}
	client, invoker, _ := newFallbackFixture(t, func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := invoker.Get(ctx, client, []string{"/a", "/b"}, Request{})
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if rec.count("/a")+rec.count("/b") != 0 {
		t.Error("no path should be attempted after cancellation")
	}
}
