// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果（メトリクスのラベル値）
const (
	LoginUpstream    = "upstream"    // プロバイダーで認証成功
	LoginFallback    = "fallback"    // ローカル認証表で認証成功
	LoginRejected    = "rejected"    // 認証情報不一致
	LoginUnavailable = "unavailable" // プロバイダー到達不可かつフォールバック無効
)

// MetricsCollector はメトリクス収集のインターフェース。
// プロバイダークライアント、認証サービス、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordUpstreamRequest(operation string, statusCode int, duration time.Duration)
	RecordFallbackAttempt(operation, outcome string)
	RecordLogin(outcome string)
	RecordHTTPResponse(method string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	fallbackAttempts *prometheus.CounterVec
	logins           *prometheus.CounterVec
	httpResponses    *prometheus.CounterVec
	httpLatency      prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rydora_upstream_requests_total",
			Help: "プロバイダー呼び出しの合計数（操作・ステータスコード別、通信エラーは0）",
		}, []string{"operation", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rydora_upstream_request_duration_seconds",
			Help:    "プロバイダー呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		fallbackAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rydora_upstream_fallback_attempts_total",
			Help: "候補パスの試行結果別の合計数",
		}, []string{"operation", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rydora_login_total",
			Help: "ログイン試行の結果別の合計数",
		}, []string{"outcome"}),
		httpResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rydora_http_responses_total",
			Help: "HTTPレスポンスのメソッド・ステータスコード別の合計数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rydora_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.fallbackAttempts,
		c.logins,
		c.httpResponses,
		c.httpLatency,
	)

	return c
}

// RecordUpstreamRequest はプロバイダー呼び出し1回を記録する。
func (c *Collector) RecordUpstreamRequest(operation string, statusCode int, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	c.upstreamLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFallbackAttempt は候補パスの試行結果を記録する。
func (c *Collector) RecordFallbackAttempt(operation, outcome string) {
	c.fallbackAttempts.WithLabelValues(operation, outcome).Inc()
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordHTTPResponse は受信リクエストの処理結果を記録する。
func (c *Collector) RecordHTTPResponse(method string, statusCode int, duration time.Duration) {
	c.httpResponses.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*Collector)(nil)
