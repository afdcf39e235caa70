package rsmq

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics receives queue activity counts.
type Metrics interface {
	IncSent(queue string)
	IncReceived(queue string)
	IncEmptyReceives(queue string)
	IncDeleted(queue string)
	IncClaimConflicts(queue string)
	IncDeadLettered(queue string)
	SetQueueDepth(queue string, total, hidden int64)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) IncSent(string)                     {}
func (NoopMetrics) IncReceived(string)                 {}
func (NoopMetrics) IncEmptyReceives(string)            {}
func (NoopMetrics) IncDeleted(string)                  {}
func (NoopMetrics) IncClaimConflicts(string)           {}
func (NoopMetrics) IncDeadLettered(string)             {}
func (NoopMetrics) SetQueueDepth(string, int64, int64) {}

// PrometheusMetrics exports rsmq_* series labelled by queue.
type PrometheusMetrics struct {
	sent           *prometheus.CounterVec
	received       *prometheus.CounterVec
	emptyReceives  *prometheus.CounterVec
	deleted        *prometheus.CounterVec
	claimConflicts *prometheus.CounterVec
	deadLettered   *prometheus.CounterVec
	depth          *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg,
// or with the default registerer when reg is nil.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsmq_messages_sent_total",
				Help: "Total number of messages sent",
			},
			[]string{"queue_name"},
		),
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsmq_messages_received_total",
				Help: "Total number of messages claimed or popped",
			},
			[]string{"queue_name"},
		),
		emptyReceives: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsmq_empty_receives_total",
				Help: "Total number of receives that found no ready message",
			},
			[]string{"queue_name"},
		),
		deleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsmq_messages_deleted_total",
				Help: "Total number of messages deleted, popped messages included",
			},
			[]string{"queue_name"},
		),
		// only the optimistic claim strategy can conflict
		claimConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsmq_claim_conflicts_total",
				Help: "Total number of optimistic claims that lost a race and were retried",
			},
			[]string{"queue_name"},
		),
		deadLettered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rsmq_messages_dead_lettered_total",
				Help: "Total number of messages moved out of the queue into its dead-letter queue",
			},
			[]string{"queue_name"},
		),
		depth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rsmq_queue_depth",
				Help: "Messages stored in the queue, by visibility",
			},
			[]string{"queue_name", "state"},
		),
	}

	reg.MustRegister(
		m.sent,
		m.received,
		m.emptyReceives,
		m.deleted,
		m.claimConflicts,
		m.deadLettered,
		m.depth,
	)

	return m
}

func (m *PrometheusMetrics) IncSent(queue string) {
	m.sent.WithLabelValues(queue).Inc()
}

func (m *PrometheusMetrics) IncReceived(queue string) {
	m.received.WithLabelValues(queue).Inc()
}

func (m *PrometheusMetrics) IncEmptyReceives(queue string) {
	m.emptyReceives.WithLabelValues(queue).Inc()
}

func (m *PrometheusMetrics) IncDeleted(queue string) {
	m.deleted.WithLabelValues(queue).Inc()
}

func (m *PrometheusMetrics) IncClaimConflicts(queue string) {
	m.claimConflicts.WithLabelValues(queue).Inc()
}

func (m *PrometheusMetrics) IncDeadLettered(queue string) {
	m.deadLettered.WithLabelValues(queue).Inc()
}

func (m *PrometheusMetrics) SetQueueDepth(queue string, total, hidden int64) {
	m.depth.WithLabelValues(queue, StateReady.String()).Set(float64(total - hidden))
	m.depth.WithLabelValues(queue, StateHidden.String()).Set(float64(hidden))
}
