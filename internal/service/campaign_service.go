// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/queue"
	"github.com/unclebandit/crm-backend/internal/repository"
	"github.com/unclebandit/crm-backend/internal/validate"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	SegmentRepo  repository.SegmentRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
	LogRepo      repository.CommunicationLogRepositoryInterface
	Queue        queue.Queue

	// RequireDraft rejects StartDelivery for campaigns that already left DRAFT.
	RequireDraft bool

	Log zerolog.Logger
}

// DeliveryResult is returned by StartDelivery
type DeliveryResult struct {
	CampaignID string                   `json:"campaignId"`
	Logs       []model.CommunicationLog `json:"logs"`
}

type CampaignStats struct {
	TotalSent    int     `json:"totalSent"`
	TotalFailed  int     `json:"totalFailed"`
	DeliveryRate float64 `json:"deliveryRate"`
}

type CampaignInput struct {
	Name      string `json:"name" validate:"required"`
	Message   string `json:"message" validate:"required"`
	SegmentID string `json:"segmentId" validate:"required"`
}

// StartDelivery moves the campaign to SENDING, records a PENDING log for every
// member of its segment and enqueues one send task per log. Logs are created
// in one transaction before anything is enqueued; the first publish failure
// stops the remaining publishes. Calling it twice dispatches twice unless
// RequireDraft is set.
func (s *CampaignService) StartDelivery(ctx context.Context, campaignID string) (*DeliveryResult, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	segment, err := s.SegmentRepo.GetByID(ctx, campaign.SegmentID)
	if err != nil {
		return nil, err
	}

	audience, err := s.CustomerRepo.ListBySegment(ctx, campaign.OwnerID, segment.Rules)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}

	if s.RequireDraft && campaign.Status != model.CampaignDraft {
		return nil, appErrors.NewConflict("campaign %s is %s, only DRAFT campaigns can be started", campaign.ID, campaign.Status)
	}

	if s.RequireDraft {
		moved, err := s.CampaignRepo.TransitionStatus(ctx, campaign.ID, model.CampaignDraft, model.CampaignSending)
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, appErrors.NewConflict("campaign %s is no longer DRAFT, it was started concurrently", campaign.ID)
		}
	} else if err := s.CampaignRepo.UpdateStatus(ctx, campaign.ID, model.CampaignSending); err != nil {
		return nil, err
	}

	customerIDs := make([]string, len(audience))
	for i, c := range audience {
		customerIDs[i] = c.ID
	}

	logs, err := s.LogRepo.CreatePending(ctx, campaign.ID, customerIDs)
	if err != nil {
		return nil, fmt.Errorf("create communication logs: %w", err)
	}

	for i, l := range logs {
		customer := audience[i]
		task := model.CampaignTask{
			CampaignID:   campaign.ID,
			CustomerID:   customer.ID,
			Message:      PersonalizeMessage(campaign.Message, customer),
			CustomerName: customer.Name,
			LogID:        l.ID,
		}
		if err := s.Queue.Publish(ctx, queue.TopicCampaign, task); err != nil {
			s.Log.Error().
				Err(err).
				Str("campaign_id", campaign.ID).
				Int("enqueued", i).
				Int("total", len(logs)).
				Msg("dispatch aborted")
			return nil, fmt.Errorf("enqueue task for log %s: %w", l.ID, err)
		}
	}

	s.Log.Info().
		Str("campaign_id", campaign.ID).
		Str("segment_id", segment.ID).
		Int("audience", len(logs)).
		Msg("campaign dispatched")

	return &DeliveryResult{CampaignID: campaign.ID, Logs: logs}, nil
}

// GetCampaignStats aggregates the campaign's logs. DeliveryRate is the share
// of SENT logs among all logs, in percent with two decimals.
func (s *CampaignService) GetCampaignStats(ctx context.Context, campaignID, ownerID string) (*CampaignStats, error) {
	if _, err := s.ownedCampaign(ctx, campaignID, ownerID); err != nil {
		return nil, err
	}

	counts, err := s.LogRepo.StatusCounts(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	stats := &CampaignStats{
		TotalSent:   counts[model.LogSent],
		TotalFailed: counts[model.LogFailed],
	}
	if total > 0 {
		stats.DeliveryRate = math.Round(float64(stats.TotalSent)/float64(total)*100*100) / 100
	}
	return stats, nil
}

// CompleteDelivered marks the campaigns touched by receipts COMPLETED once
// none of their logs is PENDING. Failures are logged.
func (s *CampaignService) CompleteDelivered(ctx context.Context, receipts []model.DeliveryReceipt) {
	seen := make(map[string]bool)
	ids := []string{}
	for _, r := range receipts {
		if !seen[r.CampaignID] {
			seen[r.CampaignID] = true
			ids = append(ids, r.CampaignID)
		}
	}

	n, err := s.CampaignRepo.CompleteIfDelivered(ctx, ids)
	if err != nil {
		s.Log.Error().Err(err).Strs("campaign_ids", ids).Msg("failed to complete campaigns")
		return
	}
	if n > 0 {
		s.Log.Info().Int64("completed", n).Msg("campaigns completed")
	}
}

func (s *CampaignService) ownedCampaign(ctx context.Context, campaignID, ownerID string) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.OwnerID != ownerID {
		return nil, appErrors.NewCampaignNotFound(campaignID)
	}
	return campaign, nil
}

func (s *CampaignService) ownedSegment(ctx context.Context, segmentID, ownerID string) (*model.Segment, error) {
	segment, err := s.SegmentRepo.GetByID(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	if segment.OwnerID != ownerID {
		return nil, appErrors.NewNotFound("segment", segmentID)
	}
	return segment, nil
}

func (s *CampaignService) CreateCampaign(ctx context.Context, ownerID string, in CampaignInput) (*model.Campaign, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.ownedSegment(ctx, in.SegmentID, ownerID); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Message:   in.Message,
		Status:    model.CampaignDraft,
		SegmentID: in.SegmentID,
		OwnerID:   ownerID,
	}
	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id, ownerID string) (*model.Campaign, error) {
	return s.ownedCampaign(ctx, id, ownerID)
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, ownerID string, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.List(ctx, ownerID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) UpdateCampaign(ctx context.Context, id, ownerID string, in CampaignInput) (*model.Campaign, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	c, err := s.ownedCampaign(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if in.SegmentID != c.SegmentID {
		if _, err := s.ownedSegment(ctx, in.SegmentID, ownerID); err != nil {
			return nil, err
		}
	}

	c.Name = in.Name
	c.Message = in.Message
	c.SegmentID = in.SegmentID
	if err := s.CampaignRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCampaign removes the campaign; its logs go with it.
func (s *CampaignService) DeleteCampaign(ctx context.Context, id, ownerID string) error {
	if _, err := s.ownedCampaign(ctx, id, ownerID); err != nil {
		return err
	}
	return s.CampaignRepo.Delete(ctx, id)
}

// RenderPreview renders the campaign message, or overrideTemplate when it is
// non-blank, for one of the owner's customers.
func (s *CampaignService) RenderPreview(ctx context.Context, campaignID, customerID, ownerID string, overrideTemplate *string) (string, error) {
	campaign, err := s.ownedCampaign(ctx, campaignID, ownerID)
	if err != nil {
		return "", err
	}

	customer, err := s.CustomerRepo.GetByID(ctx, customerID)
	if err != nil {
		return "", err
	}
	if customer.OwnerID != ownerID {
		return "", appErrors.NewNotFound("customer", customerID)
	}

	template := campaign.Message
	if overrideTemplate != nil && strings.TrimSpace(*overrideTemplate) != "" {
		template = *overrideTemplate
	}

	return PersonalizeMessage(template, *customer), nil
}
