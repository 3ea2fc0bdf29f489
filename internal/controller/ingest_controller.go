// internal/controller/ingest_controller.go
package controller

import (
	"net/http"

	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/queue"
	"github.com/unclebandit/crm-backend/internal/validate"
)

// IngestController validates customers and orders and hands them to the
// ingestion queues; the worker persists them.
type IngestController struct {
	Queue queue.Queue
}

func (c *IngestController) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var body model.CustomerPayload
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	body.UserID = owner

	c.publish(w, r, queue.TopicCustomer, body)
}

func (c *IngestController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var body model.OrderPayload
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	body.UserID = owner

	c.publish(w, r, queue.TopicOrder, body)
}

func (c *IngestController) publish(w http.ResponseWriter, r *http.Request, topic string, payload any) {
	if err := validate.Struct(payload); err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.Queue.Publish(r.Context(), topic, payload); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
