// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 通知ワーカーとAPIサーバーから利用する。
type MetricsCollector interface {
	RecordNotificationSent(reason string)
	RecordNotificationFailed(reason string, kind string)
	RecordPassCompleted(duration time.Duration, attempted, failed int)
	RecordHTTPStatus(statusCode int)
	RecordMedicineCreated()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	notificationSent   *prometheus.CounterVec
	notificationFailed *prometheus.CounterVec
	passDuration       prometheus.Histogram
	passTotal          prometheus.Counter
	lastPassAttempted  prometheus.Gauge
	lastPassFailed     prometheus.Gauge
	lastPassTimestamp  prometheus.Gauge
	httpStatus         *prometheus.CounterVec
	medicinesCreated   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		notificationSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promed_notifications_sent_total",
			Help: "送信に成功した期限通知メールの合計数",
		}, []string{"reason"}),
		notificationFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promed_notifications_failed_total",
			Help: "送信に失敗した期限通知の合計数（失敗種別ごと）",
		}, []string{"reason", "kind"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "promed_notification_pass_duration_seconds",
			Help:    "日次通知パスの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		passTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promed_notification_passes_total",
			Help: "完了した日次通知パスの合計数",
		}),
		lastPassAttempted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promed_notification_last_pass_attempted",
			Help: "直近の通知パスで送信を試行した件数",
		}),
		lastPassFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promed_notification_last_pass_failed",
			Help: "直近の通知パスで失敗した件数",
		}),
		lastPassTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "promed_notification_last_pass_timestamp_seconds",
			Help: "直近の通知パスが完了したUNIX時刻",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promed_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		medicinesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promed_medicines_created_total",
			Help: "登録された医薬品の合計数",
		}),
	}

	reg.MustRegister(
		c.notificationSent,
		c.notificationFailed,
		c.passDuration,
		c.passTotal,
		c.lastPassAttempted,
		c.lastPassFailed,
		c.lastPassTimestamp,
		c.httpStatus,
		c.medicinesCreated,
	)

	return c
}

// RecordNotificationSent は通知メールの送信成功を記録する。
func (c *Collector) RecordNotificationSent(reason string) {
	c.notificationSent.WithLabelValues(reason).Inc()
}

// RecordNotificationFailed は通知の失敗を理由と失敗種別つきで記録する。
func (c *Collector) RecordNotificationFailed(reason string, kind string) {
	c.notificationFailed.WithLabelValues(reason, kind).Inc()
}

// RecordPassCompleted は通知パスの完了を記録する。
func (c *Collector) RecordPassCompleted(duration time.Duration, attempted, failed int) {
	c.passDuration.Observe(duration.Seconds())
	c.passTotal.Inc()
	c.lastPassAttempted.Set(float64(attempted))
	c.lastPassFailed.Set(float64(failed))
	c.lastPassTimestamp.SetToCurrentTime()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordMedicineCreated は医薬品の登録を記録する。
func (c *Collector) RecordMedicineCreated() {
	c.medicinesCreated.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカープロセスのメトリクスポートで使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
