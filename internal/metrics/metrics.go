// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 通知スケジューラやボットのディスパッチャから利用する。
type MetricsCollector interface {
	RecordDeliverySuccess(kind string)
	RecordDeliveryFailure(kind string)
	RecordFiring(kind string, partial bool)
	RecordSendLatency(duration time.Duration)
	RecordOnboardingCompleted()
	RecordInboundPayload(payloadType string)
	RecordCommand(command string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	deliverySuccess *prometheus.CounterVec
	deliveryFail    *prometheus.CounterVec
	firings         *prometheus.CounterVec
	sendLatency     prometheus.Histogram
	onboardings     prometheus.Counter
	inboundPayloads *prometheus.CounterVec
	commands        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		deliverySuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grindbot_delivery_success_total",
			Help: "通知送信成功の合計数",
		}, []string{"kind"}),
		deliveryFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grindbot_delivery_fail_total",
			Help: "通知送信失敗の合計数",
		}, []string{"kind"}),
		firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grindbot_job_firings_total",
			Help: "スケジュールジョブの発火回数（partial=一部送信失敗）",
		}, []string{"kind", "partial"}),
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grindbot_send_latency_seconds",
			Help:    "メッセージ送信のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		onboardings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grindbot_onboarding_completed_total",
			Help: "オンボーディング完了の合計数",
		}),
		inboundPayloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grindbot_inbound_payloads_total",
			Help: "コンパニオンアプリからの受信ペイロード数（type別）",
		}, []string{"type"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grindbot_commands_total",
			Help: "受信したボットコマンド数",
		}, []string{"command"}),
	}

	reg.MustRegister(
		c.deliverySuccess,
		c.deliveryFail,
		c.firings,
		c.sendLatency,
		c.onboardings,
		c.inboundPayloads,
		c.commands,
	)

	return c
}

// RecordDeliverySuccess は通知送信成功を記録する。
func (c *Collector) RecordDeliverySuccess(kind string) {
	c.deliverySuccess.WithLabelValues(kind).Inc()
}

// RecordDeliveryFailure は通知送信失敗を記録する。
func (c *Collector) RecordDeliveryFailure(kind string) {
	c.deliveryFail.WithLabelValues(kind).Inc()
}

// RecordFiring はジョブの発火を記録する。
func (c *Collector) RecordFiring(kind string, partial bool) {
	p := "false"
	if partial {
		p = "true"
	}
	c.firings.WithLabelValues(kind, p).Inc()
}

// RecordSendLatency は送信のレイテンシを記録する。
func (c *Collector) RecordSendLatency(duration time.Duration) {
	c.sendLatency.Observe(duration.Seconds())
}

// RecordOnboardingCompleted はオンボーディング完了を記録する。
func (c *Collector) RecordOnboardingCompleted() {
	c.onboardings.Inc()
}

// RecordInboundPayload はコンパニオンアプリからのペイロード受信を記録する。
// 解析できなかったペイロードは"malformed"として記録する。
func (c *Collector) RecordInboundPayload(payloadType string) {
	c.inboundPayloads.WithLabelValues(payloadType).Inc()
}

// RecordCommand はボットコマンドの受信を記録する。
func (c *Collector) RecordCommand(command string) {
	c.commands.WithLabelValues(command).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordDeliverySuccess(string) {}
func (NopCollector) RecordDeliveryFailure(string) {}
func (NopCollector) RecordFiring(string, bool) {}
func (NopCollector) RecordSendLatency(time.Duration) {}
func (NopCollector) RecordOnboardingCompleted() {}
func (NopCollector) RecordInboundPayload(string) {}
func (NopCollector) RecordCommand(string) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
