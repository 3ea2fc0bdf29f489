package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_published_total",
			Help: "Total number of messages published per topic",
		},
		[]string{"topic"},
	)

	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_consumed_total",
			Help: "Total number of messages handled per topic and outcome",
		},
		[]string{"topic", "outcome"}, // ack, requeue, dead_letter
	)

	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_handler_duration_seconds",
			Help:    "Duration of message handler calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)
