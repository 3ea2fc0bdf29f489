// internal/model/communication_log.go
package model

import "time"

type LogStatus string

const (
	LogPending LogStatus = "PENDING"
	LogSent    LogStatus = "SENT"
	LogFailed  LogStatus = "FAILED"
)

// CommunicationLog records one delivery attempt of a campaign to a customer.
// It is created PENDING at dispatch and moved to SENT or FAILED by the receipt batcher.
type CommunicationLog struct {
	ID         string     `db:"id" json:"id"`
	CampaignID string     `db:"campaign_id" json:"campaignId"`
	CustomerID string     `db:"customer_id" json:"customerId"`
	Status     LogStatus  `db:"status" json:"status"`
	SentAt     *time.Time `db:"sent_at" json:"sentAt,omitempty"`
	Error      *string    `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// DeliveryReceipt is the vendor's outcome for one send attempt. It is never
// persisted on its own; the batcher folds it into the matching logs.
type DeliveryReceipt struct {
	CustomerID string    `json:"customerId" validate:"required"`
	CampaignID string    `json:"campaignId" validate:"required"`
	Status     LogStatus `json:"status" validate:"required,oneof=SENT FAILED"`
	Error      *string   `json:"error"`
}
