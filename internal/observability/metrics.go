package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveKioskConnections prometheus.Gauge
	ActiveStaffConnections prometheus.Gauge
	SSEWriteErrors         *prometheus.CounterVec
	OutboundMessages       *prometheus.CounterVec
	ProviderErrors         *prometheus.CounterVec
	FirstAudioLatency      prometheus.Histogram
	TurnStageLatency       *prometheus.HistogramVec
	turnStageWindow        *turnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveKioskConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_kiosk_connections",
			Help:      "Number of open kiosk command SSE streams (normally 0 or 1).",
		}),
		ActiveStaffConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_staff_connections",
			Help:      "Number of open staff snapshot SSE streams.",
		}),
		SSEWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sse_write_errors_total",
			Help:      "SSE stream write errors by stream.",
		}, []string{"stream"}),
		OutboundMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_messages_total",
			Help:      "Outbound SSE messages by type and delivery result.",
		}, []string{"type", "result"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		FirstAudioLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_latency_ms",
			Help:      "Latency to first assistant audio chunk in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 700, 900, 1200, 2000},
		}),
		TurnStageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_stage_latency_ms",
			Help:      "Turn-stage latency in milliseconds.",
			Buckets:   []float64{20, 50, 100, 150, 250, 400, 700, 1200, 2000, 4000, 7000, 10000},
		}, []string{"stage"}),
		turnStageWindow: newTurnStageWindow(256),
	}
}

func (m *Metrics) ObserveFirstAudioLatency(d time.Duration) {
	m.FirstAudioLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	ms := float64(d.Milliseconds())
	m.TurnStageLatency.WithLabelValues(stage).Observe(ms)
	m.turnStageWindow.Observe(stage, ms)
}

func (m *Metrics) ObserveOutboundMessage(msgType, result string) {
	m.OutboundMessages.WithLabelValues(msgType, result).Inc()
}

func (m *Metrics) ObserveSSEWriteError(stream string) {
	if m == nil || m.SSEWriteErrors == nil {
		return
	}
	m.SSEWriteErrors.WithLabelValues(stream).Inc()
}

func (m *Metrics) ObserveProviderError(provider, code string) {
	if m == nil || m.ProviderErrors == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, code).Inc()
}

func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	if m.turnStageWindow == nil {
		return TurnStageSnapshot{}
	}
	return m.turnStageWindow.Snapshot()
}

func (m *Metrics) ResetTurnStages() {
	if m == nil || m.turnStageWindow == nil {
		return
	}
	m.turnStageWindow.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
