package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ consume latency (ms)
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"topic"},
	)

	MQConsumeOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mq_consume_outcome_total",
			Help: "Consumed messages by outcome (ack, requeue, reject)",
		},
		[]string{"topic", "outcome"},
	)

	OfferTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_transitions_total",
			Help: "Offer state transitions attempted by the negotiation engine",
		},
		[]string{"transition", "result"}, // result: ok, rejected, failed
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notifications handed to the mailer",
		},
		[]string{"template", "status"},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_total",
			Help: "Outbox events processed by the dispatcher",
		},
		[]string{"topic", "status"}, // status: sent, failed
	)

	SlowQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Queries slower than the configured threshold",
		},
	)

	DBQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	PenaltiesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "penalties_applied_total",
			Help: "Missed-deadline penalties by kind",
		},
		[]string{"kind"}, // warning, ban
	)
)

func RecordMQConsume(topic, outcome string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(topic).Observe(float64(duration.Milliseconds()))
	MQConsumeOutcome.WithLabelValues(topic, outcome).Inc()
}

func RecordOfferTransition(transition, result string) {
	OfferTransitions.WithLabelValues(transition, result).Inc()
}

func RecordNotification(template, status string) {
	NotificationsSent.WithLabelValues(template, status).Inc()
}

func RecordOutbox(topic, status string) {
	OutboxPublished.WithLabelValues(topic, status).Inc()
}

func RecordDBQuery(duration time.Duration) {
	DBQueryDuration.Observe(duration.Seconds())
}

func IncrementSlowQuery() {
	SlowQueries.Inc()
}

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func RecordPenalty(kind string) {
	PenaltiesApplied.WithLabelValues(kind).Inc()
}
