// Package gateway simulates the third-party messaging provider.
package gateway

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/config"
	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/queue"
)

// FailureReason is the receipt error for a failed send.
const FailureReason = "Vendor delivery failed"

type SendRequest struct {
	CustomerID   string
	CampaignID   string
	Message      string
	CustomerName string
}

// ReceiptEmitter delivers receipts to the receipt batcher.
type ReceiptEmitter interface {
	Emit(ctx context.Context, r model.DeliveryReceipt) error
}

// QueueEmitter publishes receipts onto the delivery-receipt topic.
type QueueEmitter struct {
	Queue queue.Queue
}

func (e *QueueEmitter) Emit(ctx context.Context, r model.DeliveryReceipt) error {
	return e.Queue.Publish(ctx, queue.TopicDeliveryReceipt, r)
}

// Gateway accepts a send, waits a bounded random latency, decides the outcome
// and emits exactly one receipt for it.
type Gateway struct {
	Emitter     ReceiptEmitter
	SuccessRate float64
	MaxLatency  time.Duration

	// Rand returns values in [0,1) and drives both latency and outcome.
	Rand func() float64

	Log zerolog.Logger
}

func NewGateway(cfg config.VendorConfig, emitter ReceiptEmitter, log zerolog.Logger) *Gateway {
	return &Gateway{
		Emitter:     emitter,
		SuccessRate: cfg.SuccessRate,
		MaxLatency:  cfg.MaxLatency,
		Rand:        rand.Float64,
		Log:         log,
	}
}

func (g *Gateway) rand() float64 {
	if g.Rand == nil {
		return rand.Float64()
	}
	return g.Rand()
}

// Send reports whether the vendor accepted the message. A cancelled ctx
// aborts the call before a receipt is emitted. Receipt emission failures are
// logged, not returned.
func (g *Gateway) Send(ctx context.Context, req SendRequest) (bool, error) {
	if err := validateRequest(req); err != nil {
		return false, err
	}

	if g.MaxLatency > 0 {
		delay := time.Duration(g.rand() * float64(g.MaxLatency))
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return false, err
	}

	success := g.rand() < g.SuccessRate

	receipt := model.DeliveryReceipt{
		CustomerID: req.CustomerID,
		CampaignID: req.CampaignID,
		Status:     model.LogSent,
	}
	if !success {
		reason := FailureReason
		receipt.Status = model.LogFailed
		receipt.Error = &reason
	}
	SendsTotal.WithLabelValues(string(receipt.Status)).Inc()

	// the send already happened; emit even if the caller gives up now
	if err := g.Emitter.Emit(context.WithoutCancel(ctx), receipt); err != nil {
		ReceiptEmitFailuresTotal.Inc()
		g.Log.Error().
			Err(err).
			Str("campaign_id", req.CampaignID).
			Str("customer_id", req.CustomerID).
			Msg("failed to emit delivery receipt")
	}

	return success, nil
}

func validateRequest(req SendRequest) error {
	switch {
	case req.CustomerID == "":
		return appErrors.NewValidation("customerId", "is required")
	case req.CampaignID == "":
		return appErrors.NewValidation("campaignId", "is required")
	case req.Message == "":
		return appErrors.NewValidation("message", "is required")
	case req.CustomerName == "":
		return appErrors.NewValidation("customerName", "is required")
	}
	return nil
}
