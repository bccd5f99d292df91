package notify

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for fan-out.
type Metrics struct {
	published  *prometheus.CounterVec
	failures   *prometheus.CounterVec
	recipients prometheus.Histogram
}

// NewMetrics registers fan-out collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_notify_published_total",
		Help: "Events successfully published per event name.",
	}, []string{"event"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_notify_failures_total",
		Help: "Fan-out failures grouped by stage.",
	}, []string{"stage"})
	recipients := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "clinic_notify_recipients",
		Help:    "Resolved recipients per fan-out call.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
	})
	registerer.MustRegister(published, failures, recipients)
	return &Metrics{published: published, failures: failures, recipients: recipients}
}

func (m *Metrics) observe(res Result) {
	if m == nil {
		return
	}
	if res.Published > 0 {
		m.published.WithLabelValues(res.Event).Add(float64(res.Published))
	}
	m.recipients.Observe(float64(len(res.Recipients)))
	for _, err := range res.Errors {
		m.failures.WithLabelValues(failureStage(err)).Inc()
	}
}

func failureStage(err error) string {
	switch {
	case errors.Is(err, ErrCollaboratorPanic):
		return "panic"
	case errors.Is(err, ErrDirectoryLookup):
		return "directory"
	case errors.Is(err, ErrTransportPublish):
		return "publish"
	default:
		return "other"
	}
}
