// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/middleware"
)

// Collector はPrometheusメトリクスを収集する実装。
// ログインフロー、アカウント解決、セッション掃除、HTTPリクエストを記録する。
type Collector struct {
	logins           *prometheus.CounterVec
	usersCreated     prometheus.Counter
	duplicateRetries prometheus.Counter
	sessionsPurged   prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_login_total",
			Help: "結果別のログイン試行数",
		}, []string{"outcome"}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_users_created_total",
			Help: "初回ログインで作成されたユーザーの合計数",
		}),
		duplicateRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_duplicate_retries_total",
			Help: "同時作成の競合により検索として再試行した回数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_sessions_purged_total",
			Help: "削除された期限切れセッションの合計数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "HTTPメソッド・ステータスコード別のリクエスト数",
		}, []string{"method", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.logins,
		c.usersCreated,
		c.duplicateRetries,
		c.sessionsPurged,
		c.httpRequests,
		c.httpDuration,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordUserCreated はユーザー作成を記録する。
func (c *Collector) RecordUserCreated() {
	c.usersCreated.Inc()
}

// RecordDuplicateRetry は一意制約競合による再試行を記録する。
func (c *Collector) RecordDuplicateRetry() {
	c.duplicateRetries.Inc()
}

// RecordSessionsPurged は削除したセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	if count <= 0 {
		return
	}
	c.sessionsPurged.Add(float64(count))
}

// RecordHTTPRequest はHTTPリクエストのステータスと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// HTTPサーバーを持たないworkerモードでスクレイプ先として使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var (
	_ auth.LoginRecorder      = (*Collector)(nil)
	_ auth.ResolverRecorder   = (*Collector)(nil)
	_ middleware.HTTPRecorder = (*Collector)(nil)
)
