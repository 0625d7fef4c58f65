package devserver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records what the reference server is doing.
type Metrics struct {
	connected prometheus.Gauge
	pushed    prometheus.Counter
	requests  *prometheus.CounterVec
}

// NewMetrics registers the server metrics on the provided registerer.
// A nil registerer yields a Metrics that records nothing.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notehub_connected_sockets",
		Help: "Websocket connections currently registered.",
	})
	pushed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notehub_pushed_notifications_total",
		Help: "Notifications pushed to connected sockets.",
	})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notehub_api_requests_total",
		Help: "API requests by route and status code.",
	}, []string{"route", "code"})
	reg.MustRegister(connected, pushed, requests)
	return &Metrics{
		connected: connected,
		pushed:    pushed,
		requests:  requests,
	}
}

func (m *Metrics) SetConnected(n int) {
	if m == nil || m.connected == nil {
		return
	}
	m.connected.Set(float64(n))
}

func (m *Metrics) AddPushed(n int) {
	if m == nil || m.pushed == nil {
		return
	}
	m.pushed.Add(float64(n))
}

func (m *Metrics) IncRequest(route, code string) {
	if m == nil || m.requests == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(route, code).Inc()
}
