package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxPublishMetrics counts outbox rows by dispatch result (published, retry, dead_lettered).
type OutboxPublishMetrics struct {
	events *prometheus.CounterVec
}

func NewOutboxPublishMetrics(reg prometheus.Registerer) *OutboxPublishMetrics {
	if reg == nil {
		return &OutboxPublishMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_dispatched_total",
		Help: "Outbox rows handled by the publisher.",
	}, []string{"event_type", "result"})
	reg.MustRegister(events)
	return &OutboxPublishMetrics{events: events}
}

func (m *OutboxPublishMetrics) Inc(eventType, result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
