package batcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batcher_flushes_total",
			Help: "Total number of receipt flushes by trigger and result",
		},
		[]string{"trigger", "result"}, // trigger: size, timeout, stop
	)

	FlushSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batcher_flush_size",
			Help:    "Number of receipts per flush",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "batcher_flush_duration_seconds",
			Help:    "Duration of receipt flush transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	BufferReceipts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "batcher_buffer_receipts",
			Help: "Receipts waiting in the batch buffer",
		},
	)
)
