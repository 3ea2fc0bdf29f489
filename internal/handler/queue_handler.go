// internal/handler/queue_handler.go
package handler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/queue"
	"github.com/unclebandit/crm-backend/internal/validate"
)

type Ingester interface {
	UpsertCustomer(ctx context.Context, p model.CustomerPayload) (*model.Customer, error)
	CreateOrder(ctx context.Context, p model.OrderPayload) (*model.Order, error)
}

type TaskProcessor interface {
	Process(ctx context.Context, task model.CampaignTask) error
}

// ReceiptSink buffers receipts for batched persistence.
type ReceiptSink interface {
	OnReceipt(ctx context.Context, r model.DeliveryReceipt) error
}

// QueueHandler decodes and validates queue messages and passes them on. Every
// error is returned so the queue adapter can decide between ack, requeue and
// dead-letter.
type QueueHandler struct {
	Ingest   Ingester
	Worker   TaskProcessor
	Receipts ReceiptSink
	Log      zerolog.Logger
}

func (h *QueueHandler) HandleCustomer(ctx context.Context, body []byte) error {
	var p model.CustomerPayload
	if err := validate.Decode(body, &p); err != nil {
		return err
	}
	_, err := h.Ingest.UpsertCustomer(ctx, p)
	return err
}

func (h *QueueHandler) HandleOrder(ctx context.Context, body []byte) error {
	var p model.OrderPayload
	if err := validate.Decode(body, &p); err != nil {
		return err
	}
	_, err := h.Ingest.CreateOrder(ctx, p)
	return err
}

func (h *QueueHandler) HandleCampaignTask(ctx context.Context, body []byte) error {
	var task model.CampaignTask
	if err := validate.Decode(body, &task); err != nil {
		return err
	}
	return h.Worker.Process(ctx, task)
}

// HandleReceipt acks once the receipt is buffered, before it is persisted.
func (h *QueueHandler) HandleReceipt(ctx context.Context, body []byte) error {
	var r model.DeliveryReceipt
	if err := validate.Decode(body, &r); err != nil {
		return err
	}
	return h.Receipts.OnReceipt(ctx, r)
}

// Routes maps every topic to its handler.
func (h *QueueHandler) Routes() map[string]queue.Handler {
	return map[string]queue.Handler{
		queue.TopicCustomer:        h.HandleCustomer,
		queue.TopicOrder:           h.HandleOrder,
		queue.TopicCampaign:        h.HandleCampaignTask,
		queue.TopicDeliveryReceipt: h.HandleReceipt,
	}
}
