package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/gateway"
	"github.com/unclebandit/crm-backend/internal/model"
)

// Sender is the part of the vendor gateway the worker needs
type Sender interface {
	Send(ctx context.Context, req gateway.SendRequest) (bool, error)
}

// DeliveryWorker hands campaign tasks to the vendor. The vendor emits the
// receipt; the worker only reports whether the task may be acknowledged.
type DeliveryWorker struct {
	Vendor Sender
	Log    zerolog.Logger
}

// Constructor
func NewDeliveryWorker(v Sender, log zerolog.Logger) *DeliveryWorker {
	return &DeliveryWorker{Vendor: v, Log: log}
}

// Process returns the vendor's error unchanged so the queue can redeliver.
// A FAILED outcome is not an error.
func (w *DeliveryWorker) Process(ctx context.Context, task model.CampaignTask) error {
	sent, err := w.Vendor.Send(ctx, gateway.SendRequest{
		CustomerID:   task.CustomerID,
		CampaignID:   task.CampaignID,
		Message:      task.Message,
		CustomerName: task.CustomerName,
	})
	if err != nil {
		return err
	}

	w.Log.Debug().
		Str("campaign_id", task.CampaignID).
		Str("customer_id", task.CustomerID).
		Str("log_id", task.LogID).
		Bool("sent", sent).
		Msg("task processed")
	return nil
}
