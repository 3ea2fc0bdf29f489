package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/repository"
	"github.com/unclebandit/crm-backend/internal/segment"
	"github.com/unclebandit/crm-backend/internal/validate"
)

const (
	welcomeCampaignPrefix = "Welcome Campaign - "
	WelcomeMessage        = "Hi {name}, here's 10% off on your next order!"
)

type SegmentService struct {
	SegmentRepo  repository.SegmentRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
	Log          zerolog.Logger
}

type SegmentInput struct {
	Name  string         `json:"name" validate:"required"`
	Rules model.RuleTree `json:"rules"`
}

// Create stores the segment with its current audience size and a DRAFT
// welcome campaign targeting it, both or neither.
func (s *SegmentService) Create(ctx context.Context, ownerID string, in SegmentInput) (*model.Segment, error) {
	size, err := s.audienceSize(ctx, ownerID, in)
	if err != nil {
		return nil, err
	}

	seg := &model.Segment{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Rules:        in.Rules,
		AudienceSize: size,
		OwnerID:      ownerID,
	}
	welcome := &model.Campaign{
		ID:        uuid.NewString(),
		Name:      welcomeCampaignPrefix + seg.Name,
		Message:   WelcomeMessage,
		Status:    model.CampaignDraft,
		SegmentID: seg.ID,
		OwnerID:   ownerID,
	}
	if err := s.SegmentRepo.CreateWithCampaign(ctx, seg, welcome); err != nil {
		return nil, err
	}

	s.Log.Info().
		Str("segment_id", seg.ID).
		Int("audience_size", size).
		Str("welcome_campaign_id", welcome.ID).
		Msg("segment created")
	return seg, nil
}

func (s *SegmentService) Get(ctx context.Context, id, ownerID string) (*model.Segment, error) {
	seg, err := s.SegmentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if seg.OwnerID != ownerID {
		return nil, appErrors.NewNotFound("segment", id)
	}
	return seg, nil
}

func (s *SegmentService) List(ctx context.Context, ownerID string) ([]*model.Segment, error) {
	return s.SegmentRepo.List(ctx, ownerID)
}

// Update replaces name and rules and recomputes the audience size.
func (s *SegmentService) Update(ctx context.Context, id, ownerID string, in SegmentInput) (*model.Segment, error) {
	seg, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	size, err := s.audienceSize(ctx, ownerID, in)
	if err != nil {
		return nil, err
	}

	seg.Name = in.Name
	seg.Rules = in.Rules
	seg.AudienceSize = size
	if err := s.SegmentRepo.Update(ctx, seg); err != nil {
		return nil, err
	}
	return seg, nil
}

// Delete removes the segment and, by cascade, its campaigns.
func (s *SegmentService) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := s.Get(ctx, id, ownerID); err != nil {
		return err
	}
	return s.SegmentRepo.Delete(ctx, id)
}

// Preview counts the owner's customers matching rules without saving anything.
func (s *SegmentService) Preview(ctx context.Context, ownerID string, rules model.RuleTree) (int, error) {
	if err := segment.Validate(rules); err != nil {
		return 0, err
	}
	return s.CustomerRepo.CountBySegment(ctx, ownerID, rules)
}

func (s *SegmentService) audienceSize(ctx context.Context, ownerID string, in SegmentInput) (int, error) {
	if err := validate.Struct(in); err != nil {
		return 0, err
	}
	return s.Preview(ctx, ownerID, in.Rules)
}
