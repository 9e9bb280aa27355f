// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 記録種別のラベル値。
const (
	KindPerson  = "person"
	KindService = "service"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordCreated(kind string)
	RecordUpdated(kind string)
	RecordConflict(kind string)
	RecordValidationFailure(kind string)
	RecordAuthorizationDenied(code string)
	RecordRateLimited(limitType string)
	RecordHTTPStatus(method string, statusCode int)
	RecordSessionsCleaned(count int64)
	RecordCleanupLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	created            *prometheus.CounterVec
	updated            *prometheus.CounterVec
	conflicts          *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	denials            *prometheus.CounterVec
	rateLimited        *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	sessionsCleaned    prometheus.Counter
	cleanupLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aidbook_records_created_total",
			Help: "作成された記録（人物・支援記録）の合計数",
		}, []string{"kind"}),
		updated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aidbook_records_updated_total",
			Help: "更新された記録（人物・支援記録）の合計数",
		}, []string{"kind"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aidbook_conflicts_total",
			Help: "一意制約違反で拒否された作成の合計数",
		}, []string{"kind"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aidbook_validation_failures_total",
			Help: "フォーム検証エラーで拒否された送信の合計数",
		}, []string{"kind"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aidbook_authorization_denied_total",
			Help: "権限不足で拒否された操作の合計数",
		}, []string{"code"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aidbook_rate_limited_total",
			Help: "レート制限で拒否されたリクエストの合計数",
		}, []string{"limit_type"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aidbook_http_responses_total",
			Help: "HTTPメソッド・ステータスコード別のレスポンス数",
		}, []string{"method", "status_code"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aidbook_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
		cleanupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aidbook_session_cleanup_seconds",
			Help:    "期限切れセッション削除の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.created,
		c.updated,
		c.conflicts,
		c.validationFailures,
		c.denials,
		c.rateLimited,
		c.httpStatus,
		c.sessionsCleaned,
		c.cleanupLatency,
	)

	return c
}

// RecordCreated は記録の作成を記録する。
func (c *Collector) RecordCreated(kind string) {
	c.created.WithLabelValues(kind).Inc()
}

// RecordUpdated は記録の更新を記録する。
func (c *Collector) RecordUpdated(kind string) {
	c.updated.WithLabelValues(kind).Inc()
}

// RecordConflict は一意制約違反を記録する。
func (c *Collector) RecordConflict(kind string) {
	c.conflicts.WithLabelValues(kind).Inc()
}

// RecordValidationFailure は検証エラーを記録する。
func (c *Collector) RecordValidationFailure(kind string) {
	c.validationFailures.WithLabelValues(kind).Inc()
}

// RecordAuthorizationDenied は権限エラーをエラーコード別に記録する。
func (c *Collector) RecordAuthorizationDenied(code string) {
	c.denials.WithLabelValues(code).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limitType string) {
	c.rateLimited.WithLabelValues(limitType).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(method string, statusCode int) {
	c.httpStatus.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsCleaned は削除したセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// RecordCleanupLatency はセッション削除の所要時間を記録する。
func (c *Collector) RecordCleanupLatency(duration time.Duration) {
	c.cleanupLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordCreated(string) {}
func (Nop) RecordUpdated(string) {}
func (Nop) RecordConflict(string) {}
func (Nop) RecordValidationFailure(string) {}
func (Nop) RecordAuthorizationDenied(string) {}
func (Nop) RecordRateLimited(string) {}
func (Nop) RecordHTTPStatus(string, int) {}
func (Nop) RecordSessionsCleaned(int64) {}
func (Nop) RecordCleanupLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
