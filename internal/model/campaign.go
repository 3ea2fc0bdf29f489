// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "DRAFT"
	CampaignSending   CampaignStatus = "SENDING"
	CampaignCompleted CampaignStatus = "COMPLETED"
	CampaignFailed    CampaignStatus = "FAILED"
)

// Campaign is a message template sent to the members of one segment.
// Message supports the {name} placeholder.
type Campaign struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Message   string         `db:"message" json:"message"`
	Status    CampaignStatus `db:"status" json:"status"`
	SegmentID string         `db:"segment_id" json:"segmentId"`
	OwnerID   string         `db:"owner_id" json:"ownerId"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt *time.Time     `db:"updated_at" json:"updatedAt,omitempty"`
}
