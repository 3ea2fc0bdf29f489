package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_sends_total",
			Help: "Total number of vendor sends by receipt status",
		},
		[]string{"status"},
	)

	ReceiptEmitFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vendor_receipt_emit_failures_total",
			Help: "Total number of receipts that could not be emitted",
		},
	)
)
