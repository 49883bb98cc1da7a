package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of the realtime agent. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	framesReceived   *prometheus.CounterVec
	framesDropped    *prometheus.CounterVec
	reconnects       prometheus.Counter
	connected        prometheus.Gauge
	merges           *prometheus.CounterVec
	staleCompletions *prometheus.CounterVec
	badges           *prometheus.GaugeVec
	apiRequests      *prometheus.CounterVec
	apiDuration      *prometheus.HistogramVec
	bridgeRequests   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		framesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seedbazaar_push_frames_total",
				Help: "Push frames received per event kind",
			},
			[]string{"kind"},
		),
		framesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seedbazaar_push_frames_dropped_total",
				Help: "Push frames dropped at the decode boundary",
			},
			[]string{"reason"},
		),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "seedbazaar_push_reconnects_total",
			Help: "Reconnect attempts of the push connection",
		}),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "seedbazaar_push_connected",
			Help: "1 while the push connection is established",
		}),
		merges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seedbazaar_merges_total",
				Help: "Store merges by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		staleCompletions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seedbazaar_stale_completions_total",
				Help: "Snapshot completions discarded because the screen changed",
			},
			[]string{"screen"},
		),
		badges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "seedbazaar_badge_count",
				Help: "Current badge count per category",
			},
			[]string{"category"},
		),
		apiRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seedbazaar_api_requests_total",
				Help: "Backend REST calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		apiDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seedbazaar_api_request_duration_seconds",
				Help:    "Duration of backend REST calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		bridgeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seedbazaar_bridge_requests_total",
				Help: "Bridge API requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

func (m *Metrics) Merge(source, outcome string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) StaleCompletion(screen string) {
	if m == nil {
		return
	}
	m.staleCompletions.WithLabelValues(screen).Inc()
}

func (m *Metrics) SetBadge(category string, n int) {
	if m == nil {
		return
	}
	m.badges.WithLabelValues(category).Set(float64(n))
}

func (m *Metrics) APIRequest(operation, result string, seconds float64) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(operation, result).Inc()
	m.apiDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) BridgeRequest(method, path, status string) {
	if m == nil {
		return
	}
	m.bridgeRequests.WithLabelValues(method, path, status).Inc()
}
