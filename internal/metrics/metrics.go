package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "envmon"

// 结果标签取值
const (
	ResultSaved     = "saved"
	ResultMalformed = "malformed"
	ResultStorage   = "storage_error"
)

// Metrics 服务指标
// 使用独立的 Registry，便于测试中重复创建
// 所有方法对 nil 接收者安全，未启用指标时直接传 nil
type Metrics struct {
	registry *prometheus.Registry

	readings     *prometheus.CounterVec
	gatewayStats *prometheus.CounterVec
	alerts       *prometheus.CounterVec
	notifyErrors *prometheus.CounterVec
	ingestTime   *prometheus.HistogramVec
	wsClients    prometheus.Gauge
}

// New 创建并注册全部指标（含 Go 运行时与进程指标）
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Sensor readings processed, by result.",
		}, []string{"result"}),
		gatewayStats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_stats_total",
			Help:      "Gateway statistics snapshots processed, by result.",
		}, []string{"result"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts persisted, by alert type.",
		}, []string{"type"}),
		notifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_errors_total",
			Help:      "Failed downstream notifications, by notifier.",
		}, []string{"notifier"}),
		ingestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time spent handling one ingestion request, by source.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected live-update clients.",
		}),
	}

	reg.MustRegister(
		m.readings,
		m.gatewayStats,
		m.alerts,
		m.notifyErrors,
		m.ingestTime,
		m.wsClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 返回底层 Registry（测试用）
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ReadingProcessed(result string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(result).Inc()
}

func (m *Metrics) GatewayStatsProcessed(result string) {
	if m == nil {
		return
	}
	m.gatewayStats.WithLabelValues(result).Inc()
}

func (m *Metrics) AlertRaised(alertType string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(alertType).Inc()
}

func (m *Metrics) NotifyFailed(notifier string) {
	if m == nil {
		return
	}
	m.notifyErrors.WithLabelValues(notifier).Inc()
}

// ObserveIngest 记录一次请求耗时，source 为 http / mqtt / mock
func (m *Metrics) ObserveIngest(source string, start time.Time) {
	if m == nil {
		return
	}
	m.ingestTime.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetWebsocketClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}
