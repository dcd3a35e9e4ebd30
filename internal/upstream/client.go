package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseSize はプロバイダー応答の読み取り上限（16MB）。
const maxResponseSize = 16 << 20

// Recorder はプロバイダー呼び出しのメトリクス記録インターフェース。
type Recorder interface {
	// RecordUpstreamRequest は1回のHTTP呼び出しを記録する。通信エラー時のstatusCodeは0。
	RecordUpstreamRequest(operation string, statusCode int, duration time.Duration)
	// RecordFallbackAttempt はフォールバック候補パスの試行結果を記録する。
	RecordFallbackAttempt(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordUpstreamRequest(string, int, time.Duration) {}
func (noopRecorder) RecordFallbackAttempt(string, string)             {}

// Request はプロバイダーへの1回のリクエスト。
type Request struct {
	Operation     string // メトリクス用の操作名
	Method        string
	Path          string
	Query         url.Values
	Body          any // nilでなければJSONエンコードして送信する
	Authorization string
	Header        http.Header
}

// Response はプロバイダーの2xx応答。
type Response struct {
	StatusCode int
	Body       []byte
	Path       string
}

// ClientFactory はリクエストごとにベースURLを束縛したClientを生成する。
// コネクションプール（Transport）は環境をまたいで共有するが、ベースURLはキャッシュしない。
type ClientFactory struct {
	transport http.RoundTripper
	timeouts  Timeouts
	logger    *slog.Logger
	recorder  Recorder
}

// NewClientFactory はClientFactoryを生成する。transportがnilの場合はhttp.DefaultTransportを使う。
func NewClientFactory(transport http.RoundTripper, timeouts Timeouts, logger *slog.Logger, recorder Recorder) *ClientFactory {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &ClientFactory{
		transport: transport,
		timeouts:  timeouts,
		logger:    logger,
		recorder:  recorder,
	}
}

// New はbaseURLに束縛され、timeoutを持つClientを生成する。
func (f *ClientFactory) New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: f.transport,
			Timeout:   timeout,
		},
		logger:   f.logger,
		recorder: f.recorder,
	}
}

// ForOperation は操作のタイムアウト区分に応じたClientを生成する。
func (f *ClientFactory) ForOperation(baseURL string, op Operation) *Client {
	return f.New(baseURL, f.timeouts.For(op.Timeout))
}

// Client はベースURLに束縛されたプロバイダーHTTPクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	recorder   Recorder
}

// BaseURL は束縛されたベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do はリクエストを送信する。
// 2xx以外は*StatusError、タイムアウトは*TimeoutError、その他の通信エラーは*UnavailableErrorを返す。
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.Authorization != "" {
		httpReq.Header.Set("Authorization", req.Authorization)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recorder.RecordUpstreamRequest(req.Operation, 0, time.Since(start))
		return nil, classifyTransportError(req.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.recorder.RecordUpstreamRequest(req.Operation, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, classifyTransportError(req.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Path:       req.Path,
	}, nil
}

// classifyTransportError は通信エラーをタイムアウトとそれ以外に分類する。
func classifyTransportError(path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Path: path, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Path: path, Err: err}
	}
	return &UnavailableError{Path: path, Err: err}
}
