package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaypoint_webhook_deliveries_total",
			Help: "Webhook delivery attempts by trigger event and outcome",
		},
		[]string{"trigger_event", "outcome"},
	)

	WebhookDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relaypoint_webhook_delivery_duration_seconds",
			Help:    "Webhook delivery duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"trigger_event"},
	)

	OutboxEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaypoint_outbox_events_total",
			Help: "Outbox events processed by the relay, by final status",
		},
		[]string{"status"},
	)

	ExecutionsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaypoint_workflow_executions_enqueued_total",
			Help: "Workflow executions created by trigger event",
		},
		[]string{"trigger_event"},
	)

	RemindersFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relaypoint_reminders_fired_total",
			Help: "Reminder rules claimed and fired by the sweep",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relaypoint_sweep_duration_seconds",
			Help:    "Due-reminder sweep duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)
)
