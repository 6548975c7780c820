package auth

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsActivitySink counts activity events by type
type MetricsActivitySink struct {
	events *prometheus.CounterVec
}

var _ ActivitySink = (*MetricsActivitySink)(nil)

// NewMetricsActivitySink creates the counters and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetricsActivitySink(reg prometheus.Registerer) (*MetricsActivitySink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "places",
		Subsystem: "auth",
		Name:      "events_total",
		Help:      "Number of auth activity events by type.",
	}, []string{"event"})

	if err := reg.Register(events); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		events = already.ExistingCollector.(*prometheus.CounterVec)
	}

	return &MetricsActivitySink{events: events}, nil
}

func (m *MetricsActivitySink) Record(_ context.Context, event ActivityEvent) error {
	m.events.WithLabelValues(string(event.EventType)).Inc()
	return nil
}
