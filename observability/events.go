package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	published *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured node events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of committed node events segmented by event type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "curio",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Count of events dropped because a subscriber channel was full.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.published, eventRegistry.dropped)
	})
	return eventRegistry
}

// RecordPublished increments the published counter for the supplied event type.
func (m *eventMetrics) RecordPublished(eventType string) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(labelEventType(eventType)).Inc()
}

// RecordDropped increments the dropped counter for the supplied event type.
func (m *eventMetrics) RecordDropped(eventType string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(labelEventType(eventType)).Inc()
}

func labelEventType(eventType string) string {
	trimmed := strings.TrimSpace(eventType)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
