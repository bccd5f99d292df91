package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes relay collectors.
type Metrics struct {
	connections prometheus.Gauge
	delivered   prometheus.Counter
	dropped     *prometheus.CounterVec
}

// NewMetrics registers relay collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	connections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "clinic_relay_connections",
		Help: "Live relay connections.",
	})
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clinic_relay_messages_delivered_total",
		Help: "Frames queued to connected clients.",
	})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_relay_clients_dropped_total",
		Help: "Connections closed by the hub grouped by reason.",
	}, []string{"reason"})
	registerer.MustRegister(connections, delivered, dropped)
	return &Metrics{connections: connections, delivered: delivered, dropped: dropped}
}

func (m *Metrics) setConnections(n int) {
	if m != nil {
		m.connections.Set(float64(n))
	}
}

func (m *Metrics) delivery() {
	if m != nil {
		m.delivered.Inc()
	}
}

func (m *Metrics) drop(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}
